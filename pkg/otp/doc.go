// Package otp provisions and verifies TOTP (RFC 6238) and HOTP (RFC 4226)
// one-time passwords used as a second authentication factor.
//
// TOTP (Time-based One-Time Password) generates codes that change every 30 seconds,
// commonly used with authenticator apps like Google Authenticator, Authy, etc.
//
// HOTP (HMAC-based One-Time Password) generates codes based on a counter value,
// used in hardware tokens and some mobile apps.
//
// # Provisioning
//
// A Provisioner mints a secret and the otpauth:// key-URI for an account:
//
//	p := otp.NewProvisioner(otp.WithImageEncoder(qr.PNG{Size: 256}))
//
//	rec, err := p.Register(otp.Spec{
//	    Name:   "user@example.com",
//	    Issuer: "MyApp",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Persist rec.Secret (and the period or counter) for the account,
//	// then show rec.URI or rec.Image to the user.
//
// Passing an already stored secret in Spec.Secret re-displays an existing
// registration without generating a new secret.
//
// # Verification
//
// A Verifier checks a submitted code against a stored secret:
//
//	secret, err := otp.DecodeSecret(stored)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := otp.NewVerifier().Verify(ctx, otp.Request{
//	    Code:   "123456",
//	    Secret: secret,
//	    Window: otp.DefaultWindow,
//	})
//	switch res.Outcome {
//	case otp.OutcomeAccepted:
//	    // res.NextCounter() is the new floor for HOTP accounts
//	case otp.OutcomeRejected:
//	    // wrong code
//	case otp.OutcomeErrored:
//	    // res.Err explains why verification could not run
//	}
//
// TOTP codes are tried at offsets 0, -1, +1, -2, +2 and so on up to the
// window; HOTP codes are tried forward only. Codes are compared in constant
// time.
//
// # Fixed-secret authenticator
//
// Authenticator binds a Config to a single secret, for services with one
// shared account:
//
//	auth, err := otp.NewAuthenticator(otp.Config{
//	    Type:        otp.TypeTOTP,
//	    Secret:      "JBSWY3DPEHPK3PXP",
//	    Issuer:      "MyApp",
//	    AccountName: "user@example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = auth.Authenticate(ctx, "123456")
//
// # Hash Algorithms
//
// The package supports multiple hash algorithms:
//   - AlgorithmSHA1 (default, widely supported)
//   - AlgorithmSHA256
//   - AlgorithmSHA512
//
// Note that not all authenticator apps support SHA256 and SHA512.
//
// # Thread Safety
//
// Provisioner, Verifier and Authenticator hold no mutable state and are safe
// for concurrent use.
package otp
