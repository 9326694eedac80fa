package otp

import (
	"crypto/rand"
	"io"
	"log/slog"

	"github.com/jeremyhahn/go-twofactor/pkg/clock"
)

// Option configures a Provisioner, Verifier or Authenticator.
// Options that do not apply to the component being built are ignored.
type Option func(*options)

type options struct {
	random  io.Reader
	encoder ImageEncoder
	logger  *slog.Logger
	clock   clock.Clocker
}

// WithRandom sets the source of secret bytes. The default is crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(o *options) { o.random = r }
}

// WithImageEncoder attaches a display artifact encoder to provisioning.
func WithImageEncoder(e ImageEncoder) Option {
	return func(o *options) { o.encoder = e }
}

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the time source used to derive TOTP steps.
func WithClock(c clock.Clocker) Option {
	return func(o *options) { o.clock = c }
}

func buildOptions(opts []Option) options {
	o := options{
		random: rand.Reader,
		clock:  clock.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.random == nil {
		o.random = rand.Reader
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
