package store

import (
	"log/slog"

	"github.com/jeremyhahn/go-twofactor/pkg/clock"
)

const (
	defaultKeyPrefix = "otp:registration:"
	defaultTable     = "otp_registrations"
)

// Option configures a store backend.
type Option func(*options)

type options struct {
	clock  clock.Clocker
	logger *slog.Logger
	prefix string
	table  string
}

// WithClock sets the time source for registration timestamps.
func WithClock(c clock.Clocker) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithTable sets the PostgreSQL table name.
func WithTable(table string) Option {
	return func(o *options) { o.table = table }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.prefix == "" {
		o.prefix = defaultKeyPrefix
	}
	if o.table == "" {
		o.table = defaultTable
	}
	return o
}
