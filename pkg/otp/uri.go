package otp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/creachadair/otp/otpauth"
)

// keyURI assembles the otpauth:// URI for a resolved spec. Parameters are
// written in a fixed order so the URI reads the same for every account:
// secret, issuer, algorithm, digits, then counter (hotp) or period (totp).
func keyURI(s Spec, secret string) string {
	var b strings.Builder
	b.WriteString("otpauth://")
	b.WriteString(string(s.Type))
	b.WriteByte('/')
	b.WriteString(url.PathEscape(s.Label()))
	b.WriteString("?secret=")
	b.WriteString(secret)

	if s.Issuer != "" {
		b.WriteString("&issuer=")
		b.WriteString(queryEscape(s.Issuer))
	}
	if s.Algorithm != "" {
		b.WriteString("&algorithm=")
		b.WriteString(string(s.Algorithm))
	}
	if s.Digits > 0 {
		b.WriteString("&digits=")
		b.WriteString(strconv.Itoa(s.Digits))
	}

	switch s.Type {
	case TypeHOTP:
		b.WriteString("&counter=")
		b.WriteString(strconv.FormatUint(*s.Counter, 10))
	case TypeTOTP:
		if s.Period > 0 {
			b.WriteString("&period=")
			b.WriteString(strconv.FormatUint(uint64(s.Period), 10))
		}
	}
	return b.String()
}

// queryEscape escapes a query value using %20 for spaces, which more
// authenticator apps decode correctly than '+'.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ParseKeyURI parses an otpauth:// key-URI into a Spec carrying the URI's
// secret, so the account can be registered again or verified against.
func ParseKeyURI(s string) (*Spec, error) {
	u, err := otpauth.ParseURL(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if u.RawSecret == "" {
		return nil, fmt.Errorf("%w: key-uri has no secret", ErrInvalidSpec)
	}

	spec := Spec{
		Name:      u.Account,
		Type:      Type(strings.ToLower(u.Type)),
		Algorithm: Algorithm(strings.ToUpper(u.Algorithm)),
		Digits:    u.Digits,
		Issuer:    u.Issuer,
		Secret:    u.RawSecret,
	}
	switch spec.Type {
	case TypeHOTP:
		spec.Counter = Counter(u.Counter)
	case TypeTOTP:
		if u.Period > 0 {
			spec.Period = uint(u.Period)
		}
	}

	resolved, err := spec.resolve()
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}
