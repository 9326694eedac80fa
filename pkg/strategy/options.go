package strategy

import (
	"log/slog"

	"github.com/jeremyhahn/go-twofactor/pkg/otp"
)

const (
	// DefaultCodeField is the form or query field carrying the code.
	DefaultCodeField = "code"
	// DefaultName is the strategy's registration name.
	DefaultName = "totp"
)

// Option configures an OTP strategy. The same options can be passed to
// AuthenticateWith to override them for one request.
type Option func(*options)

type options struct {
	codeField string
	period    uint
	window    int
	name      string
	verifier  *otp.Verifier
	logger    *slog.Logger
	sink      CounterSink
}

// WithCodeField sets the field the code is read from.
func WithCodeField(field string) Option {
	return func(o *options) {
		if field != "" {
			o.codeField = field
		}
	}
}

// WithPeriod sets the TOTP period used when the account has none.
func WithPeriod(period uint) Option {
	return func(o *options) {
		if period > 0 {
			o.period = period
		}
	}
}

// WithWindow sets the number of steps tried around the expected one.
// Negative values are ignored.
func WithWindow(window int) Option {
	return func(o *options) {
		if window >= 0 {
			o.window = window
		}
	}
}

// WithName sets the registration name.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithVerifier sets the verifier, e.g. one with a fixed clock.
func WithVerifier(v *otp.Verifier) Option {
	return func(o *options) {
		if v != nil {
			o.verifier = v
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCounterSink sets where HOTP counters are advanced after a match.
func WithCounterSink(sink CounterSink) Option {
	return func(o *options) { o.sink = sink }
}

func buildOptions(opts []Option) options {
	o := options{
		codeField: DefaultCodeField,
		period:    otp.DefaultPeriod,
		window:    otp.DefaultWindow,
		name:      DefaultName,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.verifier == nil {
		o.verifier = otp.NewVerifier(otp.WithLogger(o.logger))
	}
	return o
}
