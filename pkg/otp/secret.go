package otp

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strings"
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeSecret encodes a raw secret as unpadded RFC 4648 base32, the form
// authenticator apps expect in key-URIs.
func EncodeSecret(secret []byte) string {
	return b32.EncodeToString(secret)
}

// DecodeSecret decodes a base32 secret. Whitespace is ignored, case is
// normalized and trailing padding is accepted. Any other character outside
// the base32 alphabet reports ErrMalformedSecret.
func DecodeSecret(s string) ([]byte, error) {
	clean := strings.ToUpper(strings.Join(strings.Fields(s), ""))
	clean = strings.TrimRight(clean, "=")
	if clean == "" {
		return nil, fmt.Errorf("%w: secret must not be empty", ErrMalformedSecret)
	}

	raw, err := b32.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: secret decodes to zero bytes", ErrMalformedSecret)
	}
	return raw, nil
}

// GenerateSecret returns size cryptographically random bytes.
// The size must be between MinSecretSize and MaxSecretSize.
func GenerateSecret(size int) ([]byte, error) {
	return GenerateSecretFrom(rand.Reader, size)
}

// GenerateSecretFrom is like GenerateSecret but draws from r.
func GenerateSecretFrom(r io.Reader, size int) ([]byte, error) {
	if size < MinSecretSize || size > MaxSecretSize {
		return nil, fmt.Errorf("%w: secret size must be between %d and %d, got %d",
			ErrInvalidSpec, MinSecretSize, MaxSecretSize, size)
	}

	secret := make([]byte, size)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, fmt.Errorf("otp: failed to generate random secret: %w", err)
	}
	return secret, nil
}
