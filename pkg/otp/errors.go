package otp

import "errors"

// Common errors returned by the OTP engine.
var (
	// ErrInvalidSpec indicates malformed or missing provisioning parameters.
	ErrInvalidSpec = errors.New("otp: invalid spec")
	// ErrMalformedSecret indicates a secret that is empty or not valid base32.
	ErrMalformedSecret = errors.New("otp: malformed secret")
	// ErrLookupFailed indicates the external account or secret store failed.
	ErrLookupFailed = errors.New("otp: lookup failed")
	// ErrInvalidCode indicates the provided OTP code did not match.
	ErrInvalidCode = errors.New("otp: invalid code")
	// ErrMisconfigured indicates parameters that make verification impossible,
	// such as an HOTP account without a counter.
	ErrMisconfigured = errors.New("otp: misconfigured")
	// ErrNilAuthenticator indicates a nil authenticator was used.
	ErrNilAuthenticator = errors.New("otp: authenticator is nil")
)
