package otp

import (
	"fmt"
	"strings"
)

// Spec describes an account registration.
//
// Only Name is required. Zero values for the optional fields mean "not
// specified": they are omitted from the key-URI and verification falls back
// to the package defaults.
type Spec struct {
	// Name is the account name, usually the user's e-mail address.
	Name string
	// Type is the OTP type. Default: TypeTOTP.
	Type Type
	// Algorithm, if set, must be one of SHA1, SHA256 or SHA512.
	Algorithm Algorithm
	// Digits is advertised in the key-URI. It is not enforced here.
	Digits int
	// Period is the TOTP time step in seconds. Ignored for HOTP.
	Period uint
	// Counter is the initial HOTP counter. Mandatory for HOTP, ignored for
	// TOTP. See the Counter function for building one inline.
	Counter *uint64

	// Issuer names the provider or service the account belongs to.
	Issuer string
	// IssuerFromPrefix makes an empty Issuer adopt a textual Prefix.
	IssuerFromPrefix bool
	// Prefix is prepended to Name, separated by a colon. When empty the
	// prefix adopts the Issuer, unless NoPrefix is set.
	Prefix string
	// NoPrefix disables adopting the Issuer as prefix. Use it when Name
	// already carries a prefix.
	NoPrefix bool

	// Secret is an already provisioned base32 secret. When set it is used
	// unmodified instead of generating a new one, so an existing account can
	// be displayed again.
	Secret string
	// SecretSize is the number of random bytes to generate.
	// Default: DefaultSecretSize.
	SecretSize int
}

// Counter returns a pointer to n, for use as Spec.Counter.
func Counter(n uint64) *uint64 {
	return &n
}

// Label returns the display label, the name with any prefix prepended.
func (s Spec) Label() string {
	name := strings.TrimSpace(s.Name)
	if p := strings.TrimSpace(s.Prefix); p != "" {
		return p + ":" + name
	}
	return name
}

// resolve validates s and returns a copy with defaults and the issuer/prefix
// cross-defaulting applied. It never returns a partially resolved spec.
func (s Spec) resolve() (Spec, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return Spec{}, fmt.Errorf("%w: name is mandatory and must not be empty", ErrInvalidSpec)
	}

	if s.SecretSize == 0 {
		s.SecretSize = DefaultSecretSize
	}
	if s.SecretSize < MinSecretSize || s.SecretSize > MaxSecretSize {
		return Spec{}, fmt.Errorf("%w: secret size must be between %d and %d",
			ErrInvalidSpec, MinSecretSize, MaxSecretSize)
	}

	if s.Type == "" {
		s.Type = TypeTOTP
	}
	if !s.Type.valid() {
		return Spec{}, fmt.Errorf("%w: type must be %q or %q", ErrInvalidSpec, TypeTOTP, TypeHOTP)
	}

	if s.Algorithm != "" {
		if _, err := s.Algorithm.hash(); err != nil {
			return Spec{}, fmt.Errorf("%w: algorithm must be SHA1, SHA256, or SHA512", ErrInvalidSpec)
		}
	}

	if s.Digits < 0 {
		return Spec{}, fmt.Errorf("%w: digits must not be negative", ErrInvalidSpec)
	}

	if s.Type == TypeHOTP && s.Counter == nil {
		return Spec{}, fmt.Errorf("%w: counter is mandatory for hotp", ErrInvalidSpec)
	}

	s.Issuer = strings.TrimSpace(s.Issuer)
	s.Prefix = strings.TrimSpace(s.Prefix)
	switch {
	case s.Issuer != "" && s.Prefix == "" && !s.NoPrefix:
		s.Prefix = s.Issuer
	case s.Prefix != "" && s.Issuer == "" && s.IssuerFromPrefix:
		s.Issuer = s.Prefix
	}

	if s.Secret != "" {
		if _, err := DecodeSecret(s.Secret); err != nil {
			return Spec{}, fmt.Errorf("%w: %w", ErrInvalidSpec, err)
		}
	}

	return s, nil
}
