package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jeremyhahn/go-twofactor/pkg/otp"
)

type stubStrategy struct {
	name  string
	out   Outcome
	calls int
	seen  *Request
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Authenticate(ctx context.Context, req *Request) Outcome {
	s.calls++
	s.seen = req
	return s.out
}

func newPipeline(t *testing.T, strategies ...Strategy) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Config{Strategies: strategies})
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	return p
}

func TestNewPipelineRejectsDuplicates(t *testing.T) {
	_, err := NewPipeline(Config{Strategies: []Strategy{
		&stubStrategy{name: "totp"},
		&stubStrategy{name: "totp"},
	}})
	if !errors.Is(err, ErrDuplicateStrategy) {
		t.Fatalf("expected ErrDuplicateStrategy, got %v", err)
	}
}

func TestNewPipelineRejectsNil(t *testing.T) {
	if _, err := NewPipeline(Config{Strategies: []Strategy{nil}}); err == nil {
		t.Fatal("expected error for nil strategy")
	}
}

func TestUseRejectsEmptyName(t *testing.T) {
	p := newPipeline(t)
	if err := p.Use(&stubStrategy{name: "  "}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	s := &stubStrategy{name: "totp", out: Success("")}
	p := newPipeline(t, s)

	out := p.Authenticate(context.Background(), "totp", &Request{Principal: "alice"})
	if !out.OK() {
		t.Fatalf("expected success, got %s", out.Kind)
	}
	if out.Principal != "alice" {
		t.Errorf("expected principal alice, got %q", out.Principal)
	}
	if out.Strategy != "totp" {
		t.Errorf("expected strategy totp, got %q", out.Strategy)
	}
	if out.Err() != nil {
		t.Errorf("expected nil error, got %v", out.Err())
	}
	if s.calls != 1 {
		t.Errorf("expected one call, got %d", s.calls)
	}
}

func TestAuthenticateFailure(t *testing.T) {
	p := newPipeline(t, &stubStrategy{name: "totp", out: Failure("")})

	out := p.Authenticate(context.Background(), "totp", &Request{})
	if out.Kind != KindFailure {
		t.Fatalf("expected failure, got %s", out.Kind)
	}
	if out.Reason != FailureReason {
		t.Errorf("expected reason %q, got %q", FailureReason, out.Reason)
	}
	if !errors.Is(out.Err(), ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", out.Err())
	}
	if !strings.HasPrefix(out.Err().Error(), "totp: ") {
		t.Errorf("expected strategy prefix, got %v", out.Err())
	}
}

func TestAuthenticateError(t *testing.T) {
	boom := errors.New("store unavailable")
	p := newPipeline(t, &stubStrategy{name: "totp", out: Error(boom)})

	out := p.Authenticate(context.Background(), "totp", nil)
	if out.Kind != KindError {
		t.Fatalf("expected error, got %s", out.Kind)
	}
	if !errors.Is(out.Err(), boom) {
		t.Errorf("expected cause to be preserved, got %v", out.Err())
	}
}

func TestAuthenticateUnknownStrategy(t *testing.T) {
	p := newPipeline(t, &stubStrategy{name: "totp"})

	out := p.Authenticate(context.Background(), "hotp", &Request{})
	if !errors.Is(out.Err(), ErrStrategyNotFound) {
		t.Fatalf("expected ErrStrategyNotFound, got %v", out.Err())
	}
}

func TestAuthenticateContextCancellation(t *testing.T) {
	s := &stubStrategy{name: "totp", out: Success("alice")}
	p := newPipeline(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := p.Authenticate(ctx, "totp", &Request{})
	if !errors.Is(out.Err(), context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", out.Err())
	}
	if s.calls != 0 {
		t.Errorf("strategy should not run after cancellation")
	}
}

func TestNilPipeline(t *testing.T) {
	var p *Pipeline
	if out := p.Authenticate(context.Background(), "totp", nil); !errors.Is(out.Err(), ErrNoStrategies) {
		t.Fatalf("expected ErrNoStrategies, got %v", out.Err())
	}
}

func TestChainPassesPrincipal(t *testing.T) {
	password := &stubStrategy{name: "password", out: Success("alice")}
	totp := &stubStrategy{name: "totp", out: Success("")}
	p := newPipeline(t, password, totp)

	out := p.Chain(context.Background(), &Request{}, "password", "totp")
	if !out.OK() {
		t.Fatalf("expected success, got %v", out.Err())
	}
	if totp.seen.Principal != "alice" {
		t.Errorf("second factor saw principal %q, want alice", totp.seen.Principal)
	}
	if out.Principal != "alice" {
		t.Errorf("expected principal alice, got %q", out.Principal)
	}
}

func TestChainStopsAtFirstFailure(t *testing.T) {
	password := &stubStrategy{name: "password", out: Failure("")}
	totp := &stubStrategy{name: "totp", out: Success("alice")}
	p := newPipeline(t, password, totp)

	out := p.Chain(context.Background(), &Request{}, "password", "totp")
	if out.Kind != KindFailure || out.Strategy != "password" {
		t.Fatalf("expected failure from password, got %s from %q", out.Kind, out.Strategy)
	}
	if totp.calls != 0 {
		t.Errorf("second factor should not run")
	}
}

func TestChainNoNames(t *testing.T) {
	p := newPipeline(t, &stubStrategy{name: "totp"})
	if out := p.Chain(context.Background(), nil); !errors.Is(out.Err(), ErrNoStrategies) {
		t.Fatalf("expected ErrNoStrategies, got %v", out.Err())
	}
}

func TestAnyFallback(t *testing.T) {
	first := &stubStrategy{name: "totp", out: Failure("")}
	second := &stubStrategy{name: "hotp", out: Success("alice")}
	p := newPipeline(t, first, second)

	out := p.Any(context.Background(), &Request{})
	if !out.OK() || out.Strategy != "hotp" {
		t.Fatalf("expected success from hotp, got %s from %q", out.Kind, out.Strategy)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("unexpected call counts: first=%d second=%d", first.calls, second.calls)
	}
}

func TestAnyAggregatesErrors(t *testing.T) {
	boom := errors.New("boom")
	p := newPipeline(t,
		&stubStrategy{name: "totp", out: Failure("")},
		&stubStrategy{name: "hotp", out: Error(boom)},
	)

	out := p.Any(context.Background(), &Request{})
	if out.Kind != KindError {
		t.Fatalf("expected error, got %s", out.Kind)
	}
	err := out.Err()
	if !errors.Is(err, boom) || !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected joined errors, got %v", err)
	}
	if !strings.Contains(err.Error(), "totp") || !strings.Contains(err.Error(), "hotp") {
		t.Fatalf("expected strategy names in error, got %v", err)
	}
}

func TestAnyAllFailed(t *testing.T) {
	p := newPipeline(t,
		&stubStrategy{name: "totp", out: Failure("")},
		&stubStrategy{name: "hotp", out: Failure("")},
	)
	out := p.Any(context.Background(), &Request{})
	if out.Kind != KindFailure {
		t.Fatalf("expected failure, got %s", out.Kind)
	}
}

func TestNames(t *testing.T) {
	p := newPipeline(t, &stubStrategy{name: "password"}, &stubStrategy{name: "totp"})
	if diff := cmp.Diff([]string{"password", "totp"}, p.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestValuePrefersForm(t *testing.T) {
	req := &Request{
		Form:  url.Values{"code": {"111111"}},
		Query: url.Values{"code": {"222222"}, "token": {"333333"}},
	}

	if v, ok := req.Value("code"); !ok || v != "111111" {
		t.Errorf("expected form value, got %q", v)
	}
	if v, ok := req.Value("token"); !ok || v != "333333" {
		t.Errorf("expected query value, got %q", v)
	}
	if _, ok := req.Value("missing"); ok {
		t.Error("expected missing field")
	}

	var nilReq *Request
	if _, ok := nilReq.Value("code"); ok {
		t.Error("nil request should have no values")
	}
}

func TestFromHTTP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login-otp?code=222222&next=/account", strings.NewReader("code=111111"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	req, err := FromHTTP(r, "alice")
	if err != nil {
		t.Fatalf("FromHTTP error: %v", err)
	}
	if req.Principal != "alice" {
		t.Errorf("expected principal alice, got %q", req.Principal)
	}
	if v, _ := req.Value("code"); v != "111111" {
		t.Errorf("expected body code, got %q", v)
	}
	if v, _ := req.Value("next"); v != "/account" {
		t.Errorf("expected query value, got %q", v)
	}
}

type fakeCodeAuthenticator struct {
	err  error
	code string
}

func (f *fakeCodeAuthenticator) Authenticate(ctx context.Context, code string) error {
	f.code = code
	return f.err
}

func TestOTPAdapter(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		form     url.Values
		wantKind Kind
		wantCode string
	}{
		{"valid code", nil, url.Values{"code": {"123456"}}, KindSuccess, "123456"},
		{"wrong code", otp.ErrInvalidCode, url.Values{"code": {"123456"}}, KindFailure, "123456"},
		{"misconfigured", otp.ErrMisconfigured, url.Values{"code": {"123456"}}, KindError, "123456"},
		{"missing code", nil, url.Values{}, KindFailure, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCodeAuthenticator{err: tt.err}
			s := OTP("otp", "code", fake)
			if s.Name() != "otp" {
				t.Fatalf("expected name otp, got %q", s.Name())
			}

			out := s.Authenticate(context.Background(), &Request{Principal: "alice", Form: tt.form})
			if out.Kind != tt.wantKind {
				t.Fatalf("expected %s, got %s", tt.wantKind, out.Kind)
			}
			if fake.code != tt.wantCode {
				t.Errorf("authenticator received %q, want %q", fake.code, tt.wantCode)
			}
			if tt.wantKind == KindSuccess && out.Principal != "alice" {
				t.Errorf("expected principal alice, got %q", out.Principal)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{KindSuccess: "success", KindFailure: "failure", KindError: "error", Kind(9): "unknown"} {
		if k.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), k.String(), want)
		}
	}
}
