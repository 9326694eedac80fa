package otp

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// Type represents the OTP algorithm type.
type Type string

const (
	// TypeTOTP represents Time-based OTP (RFC 6238).
	TypeTOTP Type = "totp"
	// TypeHOTP represents Counter-based OTP (RFC 4226).
	TypeHOTP Type = "hotp"
)

func (t Type) valid() bool {
	return t == TypeTOTP || t == TypeHOTP
}

// Algorithm represents the hash algorithm used for OTP generation.
type Algorithm string

const (
	// AlgorithmSHA1 uses SHA1 hash algorithm.
	AlgorithmSHA1 Algorithm = "SHA1"
	// AlgorithmSHA256 uses SHA256 hash algorithm.
	AlgorithmSHA256 Algorithm = "SHA256"
	// AlgorithmSHA512 uses SHA512 hash algorithm.
	AlgorithmSHA512 Algorithm = "SHA512"
)

// hash returns the constructor for a. The empty algorithm means SHA1, which
// is what authenticator apps assume when the parameter is absent.
func (a Algorithm) hash() (func() hash.Hash, error) {
	switch a {
	case "", AlgorithmSHA1:
		return sha1.New, nil
	case AlgorithmSHA256:
		return sha256.New, nil
	case AlgorithmSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", string(a))
	}
}

// Defaults and limits shared by provisioning and verification.
const (
	// DefaultSecretSize is the number of random bytes in a generated secret.
	DefaultSecretSize = 32
	// MinSecretSize is the smallest secret accepted at provisioning.
	MinSecretSize = 8
	// MaxSecretSize is the largest secret accepted at provisioning.
	MaxSecretSize = 128

	// DefaultDigits is the code length used when none is specified.
	DefaultDigits = 6
	// MinDigits and MaxDigits bound the code length the engine computes.
	MinDigits = 6
	MaxDigits = 8

	// DefaultPeriod is the TOTP time step in seconds.
	DefaultPeriod = 30
	// DefaultWindow is the number of steps tried on each side of the
	// expected TOTP step.
	DefaultWindow = 6
	// MaxWindow bounds the verification window.
	MaxWindow = 100
)
