package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/jeremyhahn/go-twofactor/pkg/clock"
)

// Optimistic retries when a concurrent writer touches the key between
// WATCH and EXEC.
const (
	maxAdvanceRetries = 32
	advanceBackoff    = 2 * time.Millisecond
	maxAdvanceBackoff = 50 * time.Millisecond
)

// Redis stores registrations as JSON values under a key prefix.
type Redis struct {
	client redis.UniversalClient
	prefix string
	clock  clock.Clocker
	logger *slog.Logger
}

// NewRedis creates a Redis store over client.
func NewRedis(client redis.UniversalClient, opts ...Option) *Redis {
	o := buildOptions(opts)
	return &Redis{
		client: client,
		prefix: o.prefix,
		clock:  o.clock,
		logger: o.logger,
	}
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

// Get returns the registration for id.
func (r *Redis) Get(ctx context.Context, id string) (*Registration, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: redis get: %w", err)
	}
	return decodeRegistration(data)
}

// Put stores reg, keeping the creation time of an existing registration.
func (r *Redis) Put(ctx context.Context, reg *Registration) error {
	if err := reg.validate(); err != nil {
		return err
	}

	cp := *reg
	now := r.clock.Now().UTC()
	if cp.CreatedAt.IsZero() {
		prev, err := r.Get(ctx, cp.AccountID)
		switch {
		case err == nil:
			cp.CreatedAt = prev.CreatedAt
		case errors.Is(err, ErrNotFound):
			cp.CreatedAt = now
		default:
			return err
		}
	}
	cp.UpdatedAt = now

	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("store: encode registration: %w", err)
	}
	if err := r.client.Set(ctx, r.key(cp.AccountID), data, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set: %w", err)
	}
	return nil
}

// Delete removes the registration for id.
func (r *Redis) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("store: redis del: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceCounter raises the stored counter of id to next inside a
// WATCH/MULTI transaction, retrying when the key changes concurrently.
func (r *Redis) AdvanceCounter(ctx context.Context, id string, next uint64) error {
	key := r.key(id)

	advance := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		reg, err := decodeRegistration(data)
		if err != nil {
			return err
		}
		if next <= reg.Counter {
			return ErrStaleCounter
		}

		reg.Counter = next
		reg.UpdatedAt = r.clock.Now().UTC()
		out, err := json.Marshal(reg)
		if err != nil {
			return fmt.Errorf("store: encode registration: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	b := retry.NewExponential(advanceBackoff)
	b = retry.WithJitterPercent(50, b)
	b = retry.WithCappedDuration(maxAdvanceBackoff, b)
	b = retry.WithMaxRetries(maxAdvanceRetries, b)

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := r.client.Watch(ctx, advance, key)
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.DebugContext(ctx, "store counter advance conflicted", "account", id, "attempt", attempt)
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrStaleCounter):
		return err
	default:
		return fmt.Errorf("store: redis advance counter: %w", err)
	}
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func decodeRegistration(data []byte) (*Registration, error) {
	var reg Registration
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("store: decode registration: %w", err)
	}
	return &reg, nil
}
