// Package store persists second-factor registrations.
//
// A Registration holds an account's encoded secret and the parameters its
// codes are generated with. For HOTP accounts the Counter field is the next
// counter that may be accepted; callers raise it with AdvanceCounter after
// each successful verification, and the backends never let it decrease.
//
// Backends:
//   - Memory, a mutex-guarded map for tests and single-process tools
//   - Redis, JSON values under a key prefix (github.com/redis/go-redis/v9)
//   - Postgres, one row per account (github.com/jackc/pgx/v5)
//
// Sealed wraps any backend and encrypts secrets at rest. Open builds a
// backend from a Config:
//
//	st, err := store.Open(ctx, store.Config{
//	    Driver:        store.DriverRedis,
//	    RedisURL:      "redis://localhost:6379/0",
//	    EncryptionKey: os.Getenv("OTP_MASTER_KEY"),
//	})
package store
