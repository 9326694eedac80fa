package otp

import (
	"crypto/hmac"
	"encoding/binary"
	"fmt"
	"time"
)

var pow10 = [...]uint32{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000}

// Code computes the RFC 4226 code for secret at counter.
//
// The HMAC of the 8-byte big-endian counter is dynamically truncated to a
// 31-bit value, reduced modulo 10^digits and left-padded with zeros. For
// TOTP the caller passes Step(t, period) as the counter.
func Code(secret []byte, counter uint64, digits int, alg Algorithm) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: secret must not be empty", ErrMalformedSecret)
	}
	if digits < MinDigits || digits > MaxDigits {
		return "", fmt.Errorf("%w: digits must be between %d and %d, got %d",
			ErrMisconfigured, MinDigits, MaxDigits, digits)
	}
	newHash, err := alg.hash()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(newHash, secret)
	mac.Write(msg[:])
	value := truncate(mac.Sum(nil)) % pow10[digits]

	return fmt.Sprintf("%0*d", digits, value), nil
}

// truncate implements the dynamic truncation of RFC 4226 section 5.3.
func truncate(sum []byte) uint32 {
	offset := sum[len(sum)-1] & 0x0f
	return binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
}

// Step returns the TOTP time step containing t, floor(unix(t) / period).
// A zero period means DefaultPeriod. Instants before the epoch map to step 0.
func Step(t time.Time, period uint) uint64 {
	if period == 0 {
		period = DefaultPeriod
	}
	unix := t.Unix()
	if unix < 0 {
		return 0
	}
	return uint64(unix) / uint64(period)
}
