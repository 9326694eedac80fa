package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

const (
	defaultConnectRetries = 5
	pingTimeout           = 5 * time.Second
)

// ErrUnknownDriver indicates an unsupported Config.Driver.
var ErrUnknownDriver = errors.New("store: unknown driver")

// Config selects and configures a backend.
type Config struct {
	// Driver is one of DriverMemory, DriverRedis or DriverPostgres.
	Driver string
	// RedisURL is a redis:// URL, used by DriverRedis.
	RedisURL string
	// PostgresDSN is a connection string, used by DriverPostgres.
	PostgresDSN string
	// KeyPrefix overrides the Redis key prefix.
	KeyPrefix string
	// Table overrides the PostgreSQL table name.
	Table string
	// EncryptionKey is a base64 master key. When set, secrets are sealed.
	EncryptionKey string
	// ConnectRetries bounds the initial ping attempts. Default: 5.
	ConnectRetries int
}

// Open connects the configured backend, retrying the initial ping with
// Fibonacci backoff, and wraps it in Sealed when an encryption key is set.
func Open(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	if cfg.KeyPrefix != "" {
		opts = append(opts, WithKeyPrefix(cfg.KeyPrefix))
	}
	if cfg.Table != "" {
		opts = append(opts, WithTable(cfg.Table))
	}
	o := buildOptions(opts)

	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", DriverMemory:
		st = NewMemory(opts...)
	case DriverRedis:
		st, err = openRedis(ctx, cfg, opts)
	case DriverPostgres:
		st, err = openPostgres(ctx, cfg, opts)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.EncryptionKey == "" {
		o.logger.DebugContext(ctx, "store opened", "driver", driverName(cfg.Driver), "sealed", false)
		return st, nil
	}

	master, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("store: decode encryption key: %w", err)
	}
	sealed, err := NewSealed(st, master)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	o.logger.DebugContext(ctx, "store opened", "driver", driverName(cfg.Driver), "sealed", true)
	return sealed, nil
}

func driverName(d string) string {
	if d == "" {
		return DriverMemory
	}
	return d
}

func backoff(retries int) retry.Backoff {
	if retries <= 0 {
		retries = defaultConnectRetries
	}
	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	return retry.WithMaxRetries(uint64(retries), b)
}

func ping(ctx context.Context, retries int, fn func(context.Context) error) error {
	return retry.Do(ctx, backoff(retries), func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := fn(pingCtx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func openRedis(ctx context.Context, cfg Config, opts []Option) (Store, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := ping(ctx, cfg.ConnectRetries, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: ping redis: %w", err)
	}
	return NewRedis(rdb, opts...), nil
}

func openPostgres(ctx context.Context, cfg Config, opts []Option) (Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("store: create postgres pool: %w", err)
	}
	if err := ping(ctx, cfg.ConnectRetries, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	pg := NewPostgres(pool, opts...)
	pg.closer = pool.Close
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pg, nil
}
