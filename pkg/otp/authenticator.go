package otp

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-twofactor/pkg/clock"
)

// Config holds the settings of an Authenticator bound to a single secret.
type Config struct {
	// Type specifies the OTP type (TOTP or HOTP).
	Type Type
	// Secret is the base32-encoded shared secret key (required).
	Secret string
	// Issuer is the name of the issuing organization (e.g., "MyApp").
	Issuer string
	// AccountName is the account identifier (e.g., "user@example.com").
	AccountName string
	// Digits specifies the number of digits in the OTP code (6, 7, or 8).
	// Default: 6
	Digits uint
	// Period specifies the time step in seconds for TOTP.
	// Default: 30
	Period uint
	// Counter specifies the stored counter value for HOTP.
	// Default: 0
	Counter uint64
	// Algorithm specifies the hash algorithm to use.
	// Default: SHA1
	Algorithm Algorithm
	// Skew is the verification window: steps tried on each side of the
	// current time for TOTP, or forward of the counter for HOTP.
	// Default: DefaultWindow
	Skew uint
}

// validate checks that the configuration is valid.
func (c Config) validate() error {
	if c.Type != TypeTOTP && c.Type != TypeHOTP {
		return fmt.Errorf("%w: type must be 'totp' or 'hotp'", ErrMisconfigured)
	}

	if strings.TrimSpace(c.Secret) == "" {
		return fmt.Errorf("%w: secret must not be empty", ErrMisconfigured)
	}
	if _, err := DecodeSecret(c.Secret); err != nil {
		return fmt.Errorf("%w: %w", ErrMisconfigured, err)
	}

	if c.Digits != 0 && (c.Digits < MinDigits || c.Digits > MaxDigits) {
		return fmt.Errorf("%w: digits must be 6, 7, or 8", ErrMisconfigured)
	}

	if _, err := c.Algorithm.hash(); err != nil {
		return fmt.Errorf("%w: algorithm must be SHA1, SHA256, or SHA512", ErrMisconfigured)
	}

	return nil
}

// Authenticator validates codes for one configured secret.
// It is safe for concurrent use.
type Authenticator struct {
	cfg         Config
	secret      []byte
	clock       clock.Clocker
	verifier    *Verifier
	provisioner *Provisioner
}

// NewAuthenticator creates a new OTP authenticator.
// The configuration is validated and an error is returned if invalid.
func NewAuthenticator(cfg Config, opts ...Option) (*Authenticator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Digits == 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmSHA1
	}
	if cfg.Skew == 0 {
		cfg.Skew = DefaultWindow
	}

	secret, err := DecodeSecret(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMisconfigured, err)
	}

	o := buildOptions(opts)
	return &Authenticator{
		cfg:         cfg,
		secret:      secret,
		clock:       o.clock,
		verifier:    NewVerifier(opts...),
		provisioner: NewProvisioner(opts...),
	}, nil
}

func (a *Authenticator) request(code string, counter uint64) Request {
	return Request{
		Code:      code,
		Secret:    a.secret,
		Type:      a.cfg.Type,
		Algorithm: a.cfg.Algorithm,
		Digits:    int(a.cfg.Digits),
		Period:    a.cfg.Period,
		Counter:   Counter(counter),
		Window:    int(a.cfg.Skew),
	}
}

// Authenticate validates an OTP code.
// For TOTP, it validates against the current time with skew tolerance.
// For HOTP, it validates forward of the configured counter value.
func (a *Authenticator) Authenticate(ctx context.Context, code string) error {
	if a == nil {
		return ErrNilAuthenticator
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: code must not be empty", ErrInvalidCode)
	}

	_, err := a.check(ctx, code, a.cfg.Counter)
	return err
}

// ValidateCounter validates an HOTP code against counter and returns the
// new counter value, one past the matched counter. The returned counter
// should be stored and used for the next validation.
func (a *Authenticator) ValidateCounter(ctx context.Context, code string, counter uint64) (uint64, error) {
	if a == nil {
		return 0, ErrNilAuthenticator
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if a.cfg.Type != TypeHOTP {
		return 0, fmt.Errorf("%w: ValidateCounter is only valid for HOTP", ErrMisconfigured)
	}

	if strings.TrimSpace(code) == "" {
		return 0, fmt.Errorf("%w: code must not be empty", ErrInvalidCode)
	}

	res, err := a.check(ctx, code, counter)
	if err != nil {
		return 0, err
	}
	return res.NextCounter(), nil
}

func (a *Authenticator) check(ctx context.Context, code string, counter uint64) (Result, error) {
	res := a.verifier.Verify(ctx, a.request(code, counter))
	switch res.Outcome {
	case OutcomeAccepted:
		return res, nil
	case OutcomeErrored:
		return res, res.Err
	default:
		return res, ErrInvalidCode
	}
}

// Generate generates an OTP code.
// For TOTP, it generates the code for the current time.
// For HOTP, a counter value must be provided.
func (a *Authenticator) Generate(counter ...uint64) (string, error) {
	if a == nil {
		return "", ErrNilAuthenticator
	}

	var step uint64
	if a.cfg.Type == TypeTOTP {
		step = Step(a.clock.Now(), a.cfg.Period)
	} else {
		if len(counter) == 0 {
			return "", fmt.Errorf("%w: counter required for HOTP generation", ErrMisconfigured)
		}
		step = counter[0]
	}

	code, err := Code(a.secret, step, int(a.cfg.Digits), a.cfg.Algorithm)
	if err != nil {
		return "", fmt.Errorf("otp: failed to generate %s code: %w", a.cfg.Type, err)
	}
	return code, nil
}

// ProvisioningURI returns the otpauth:// URI for QR code generation.
// This URI can be encoded as a QR code and scanned by authenticator apps.
func (a *Authenticator) ProvisioningURI() (string, error) {
	if a == nil {
		return "", ErrNilAuthenticator
	}

	spec := Spec{
		Name:      a.cfg.AccountName,
		Type:      a.cfg.Type,
		Algorithm: a.cfg.Algorithm,
		Digits:    int(a.cfg.Digits),
		Issuer:    a.cfg.Issuer,
		Secret:    a.cfg.Secret,
	}
	if a.cfg.Type == TypeTOTP {
		spec.Period = a.cfg.Period
	} else {
		spec.Counter = Counter(a.cfg.Counter)
	}

	rec, err := a.provisioner.Register(spec)
	if err != nil {
		return "", err
	}
	return rec.URI, nil
}
