//go:build integration

package otp_test

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/jeremyhahn/go-twofactor/pkg/api"
	"github.com/jeremyhahn/go-twofactor/pkg/otp"
	"github.com/jeremyhahn/go-twofactor/pkg/qr"
	"github.com/jeremyhahn/go-twofactor/pkg/store"
	"github.com/jeremyhahn/go-twofactor/pkg/strategy"
)

func newSecret(t *testing.T) string {
	t.Helper()
	raw, err := otp.GenerateSecret(otp.DefaultSecretSize)
	if err != nil {
		t.Fatalf("Failed to generate secret: %v", err)
	}
	return otp.EncodeSecret(raw)
}

func TestIntegration_TOTP_EndToEnd(t *testing.T) {
	// Registration → key-URI → parse → code → verification
	tests := []struct {
		name      string
		algorithm otp.Algorithm
		digits    int
	}{
		{"SHA1_6digits", otp.AlgorithmSHA1, 6},
		{"SHA256_6digits", otp.AlgorithmSHA256, 6},
		{"SHA512_6digits", otp.AlgorithmSHA512, 6},
		{"SHA1_7digits", otp.AlgorithmSHA1, 7},
		{"SHA1_8digits", otp.AlgorithmSHA1, 8},
	}

	ctx := context.Background()
	p := otp.NewProvisioner(otp.WithImageEncoder(qr.PNG{}))
	v := otp.NewVerifier()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := p.Register(otp.Spec{
				Name:      "test@example.com",
				Issuer:    "IntegrationTest",
				Algorithm: tt.algorithm,
				Digits:    tt.digits,
				Period:    30,
			})
			if err != nil {
				t.Fatalf("Register error: %v", err)
			}
			if rec.Image == nil || len(rec.Image.Data) == 0 {
				t.Fatal("no QR image rendered")
			}

			spec, err := otp.ParseKeyURI(rec.URI)
			if err != nil {
				t.Fatalf("ParseKeyURI error: %v", err)
			}
			if spec.Secret != rec.Secret || spec.Algorithm != tt.algorithm || spec.Digits != tt.digits {
				t.Fatalf("parsed spec does not match registration: %+v", spec)
			}

			secret, err := otp.DecodeSecret(spec.Secret)
			if err != nil {
				t.Fatalf("DecodeSecret error: %v", err)
			}
			code, err := otp.Code(secret, otp.Step(time.Now(), spec.Period), spec.Digits, spec.Algorithm)
			if err != nil {
				t.Fatalf("Code error: %v", err)
			}

			res := v.Verify(ctx, otp.Request{
				Code:      code,
				Secret:    secret,
				Algorithm: spec.Algorithm,
				Digits:    spec.Digits,
				Period:    spec.Period,
				Window:    1,
			})
			if !res.Accepted() {
				t.Fatalf("code rejected: %s %v", res.Outcome, res.Err)
			}
		})
	}
}

func TestIntegration_PquernaInterop(t *testing.T) {
	// Codes produced by another implementation from our URI are accepted.
	secret := newSecret(t)
	auth, err := otp.NewAuthenticator(otp.Config{
		Type:        otp.TypeTOTP,
		Secret:      secret,
		Issuer:      "Interop",
		AccountName: "interop@example.com",
		Skew:        1,
	})
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("pquerna GenerateCode error: %v", err)
	}
	if err := auth.Authenticate(context.Background(), code); err != nil {
		t.Errorf("pquerna code rejected: %v", err)
	}

	ours, err := auth.Generate()
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !totp.Validate(ours, secret) {
		t.Error("pquerna rejected our code")
	}
}

func TestIntegration_HOTP_StoreReplay(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	rec, err := otp.NewProvisioner().Register(otp.Spec{
		Name:    "hotp@example.com",
		Type:    otp.TypeHOTP,
		Counter: otp.Counter(0),
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := st.Put(ctx, store.FromRecord("hotp", rec)); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	s, err := strategy.NewWithStore(st, strategy.WithWindow(3))
	if err != nil {
		t.Fatalf("NewWithStore error: %v", err)
	}
	secret, _ := otp.DecodeSecret(rec.Secret)

	for counter := uint64(0); counter < 5; counter++ {
		t.Run(fmt.Sprintf("counter_%d", counter), func(t *testing.T) {
			code, _ := otp.Code(secret, counter, 6, otp.AlgorithmSHA1)
			req := &api.Request{Principal: "hotp", Form: url.Values{"code": {code}}}

			if out := s.Authenticate(ctx, req); !out.OK() {
				t.Fatalf("code rejected: %s %v", out.Kind, out.Err())
			}
			if out := s.Authenticate(ctx, req); out.OK() {
				t.Fatal("replayed code accepted")
			}
		})
	}

	reg, _ := st.Get(ctx, "hotp")
	if reg.Counter != 5 {
		t.Errorf("stored counter = %d, want 5", reg.Counter)
	}
}

func TestIntegration_MultiUser(t *testing.T) {
	ctx := context.Background()
	v := otp.NewVerifier()

	secret1, _ := otp.DecodeSecret(newSecret(t))
	secret2, _ := otp.DecodeSecret(newSecret(t))
	step := otp.Step(time.Now(), otp.DefaultPeriod)
	code1, _ := otp.Code(secret1, step, 6, otp.AlgorithmSHA1)
	code2, _ := otp.Code(secret2, step, 6, otp.AlgorithmSHA1)

	if !v.Verify(ctx, otp.Request{Code: code1, Secret: secret1, Window: 1}).Accepted() {
		t.Error("user1 code should validate for user1")
	}
	if !v.Verify(ctx, otp.Request{Code: code2, Secret: secret2, Window: 1}).Accepted() {
		t.Error("user2 code should validate for user2")
	}
	if code1 != code2 && v.Verify(ctx, otp.Request{Code: code2, Secret: secret1, Window: 0}).Accepted() {
		t.Error("user2 code should not validate for user1")
	}
}

func TestIntegration_ConcurrentVerification(t *testing.T) {
	secret := newSecret(t)
	auth, err := otp.NewAuthenticator(otp.Config{
		Type:        otp.TypeTOTP,
		Secret:      secret,
		AccountName: "concurrent@example.com",
	})
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}
	code, err := auth.Generate()
	if err != nil {
		t.Fatalf("Failed to generate code: %v", err)
	}

	const numGoroutines = 50
	var wg sync.WaitGroup
	var successCount, failCount atomic.Int32

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := auth.Authenticate(context.Background(), code); err != nil {
				failCount.Add(1)
			} else {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != numGoroutines {
		t.Errorf("Expected %d successes, got %d (failures: %d)", numGoroutines, successCount.Load(), failCount.Load())
	}
}
