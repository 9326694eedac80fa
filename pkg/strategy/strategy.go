package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-twofactor/pkg/api"
	"github.com/jeremyhahn/go-twofactor/pkg/otp"
	"github.com/jeremyhahn/go-twofactor/pkg/store"
)

var (
	// ErrNotProvisioned indicates the account has no stored secret.
	ErrNotProvisioned = errors.New("strategy: account not provisioned")
	// ErrNoPrincipal indicates the request carries no authenticated identity.
	ErrNoPrincipal = errors.New("strategy: request has no principal")
	// ErrNilSetup indicates the strategy was built without a Setup.
	ErrNilSetup = errors.New("strategy: setup is nil")
)

// Account is what a Setup reports for the requesting user.
type Account struct {
	// ID is the account identity, reported as the principal on success.
	ID string
	// Secret is the base32 encoded secret.
	Secret string
	Type   otp.Type
	// Algorithm, Digits and Period fall back to the verifier and strategy
	// defaults when zero.
	Algorithm otp.Algorithm
	Digits    int
	Period    uint
	// Counter is the HOTP floor.
	Counter uint64
}

// FromRegistration converts a stored registration.
func FromRegistration(reg *store.Registration) Account {
	return Account{
		ID:        reg.AccountID,
		Secret:    reg.Secret,
		Type:      reg.Type,
		Algorithm: reg.Algorithm,
		Digits:    reg.Digits,
		Period:    reg.Period,
		Counter:   reg.Counter,
	}
}

// Done completes a Setup. Only the first call has any effect.
type Done func(Account, error)

// Setup resolves the account for a request and reports it through done.
// It may complete synchronously or from another goroutine.
type Setup func(ctx context.Context, req *api.Request, done Done)

// CounterSink persists the new HOTP floor after an accepted code. Returning
// store.ErrStaleCounter turns the attempt into a failure: another request
// already consumed the code.
type CounterSink func(ctx context.Context, accountID string, next uint64) error

// OTP is an api.Strategy that verifies a submitted TOTP or HOTP code against
// the secret its Setup resolves.
type OTP struct {
	setup Setup
	opts  options
}

// New creates an OTP strategy.
func New(setup Setup, opts ...Option) (*OTP, error) {
	if setup == nil {
		return nil, ErrNilSetup
	}
	return &OTP{setup: setup, opts: buildOptions(opts)}, nil
}

// NewWithStore creates an OTP strategy that resolves accounts from st by
// request principal and advances HOTP counters in st.
func NewWithStore(st store.Store, opts ...Option) (*OTP, error) {
	opts = append([]Option{WithCounterSink(st.AdvanceCounter)}, opts...)
	return New(LookupSetup(st, nil), opts...)
}

// Name returns the registration name, "totp" by default.
func (s *OTP) Name() string {
	return s.opts.name
}

// Authenticate implements api.Strategy.
func (s *OTP) Authenticate(ctx context.Context, req *api.Request) api.Outcome {
	return s.AuthenticateWith(ctx, req)
}

type lookup struct {
	acct Account
	err  error
}

// AuthenticateWith authenticates req with per-call option overrides.
func (s *OTP) AuthenticateWith(ctx context.Context, req *api.Request, overrides ...Option) api.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		req = &api.Request{}
	}

	o := s.opts
	for _, opt := range overrides {
		if opt != nil {
			opt(&o)
		}
	}

	ch := make(chan lookup, 1)
	var once sync.Once
	done := func(acct Account, err error) {
		once.Do(func() { ch <- lookup{acct: acct, err: err} })
	}
	go s.setup(ctx, req, done)

	var res lookup
	select {
	case res = <-ch:
	case <-ctx.Done():
		return api.Error(ctx.Err())
	}

	if res.err != nil {
		return api.Error(fmt.Errorf("%w: %w", otp.ErrLookupFailed, res.err))
	}

	acct := res.acct
	secret, err := otp.DecodeSecret(acct.Secret)
	if err != nil {
		return api.Error(err)
	}

	code, _ := req.Value(o.codeField)
	period := acct.Period
	if period == 0 {
		period = o.period
	}
	vreq := otp.Request{
		Code:      strings.TrimSpace(code),
		Secret:    secret,
		Type:      acct.Type,
		Algorithm: acct.Algorithm,
		Digits:    acct.Digits,
		Period:    period,
		Window:    o.window,
	}
	if acct.Type == otp.TypeHOTP {
		vreq.Counter = otp.Counter(acct.Counter)
	}

	result := o.verifier.Verify(ctx, vreq)
	switch result.Outcome {
	case otp.OutcomeAccepted:
	case otp.OutcomeRejected:
		o.logger.DebugContext(ctx, "otp strategy rejected code", "strategy", o.name, "account", acct.ID)
		return api.Failure(api.FailureReason)
	default:
		return api.Error(result.Err)
	}

	if acct.Type == otp.TypeHOTP && o.sink != nil {
		err := o.sink(ctx, acct.ID, result.NextCounter())
		switch {
		case errors.Is(err, store.ErrStaleCounter):
			o.logger.DebugContext(ctx, "otp strategy lost counter race", "strategy", o.name, "account", acct.ID)
			return api.Failure(api.FailureReason)
		case err != nil:
			return api.Error(fmt.Errorf("strategy: advance counter: %w", err))
		}
	}

	principal := acct.ID
	if principal == "" {
		principal = req.Principal
	}
	return api.Success(principal)
}

// AccountIDFunc extracts the account identity from a request.
type AccountIDFunc func(req *api.Request) (string, error)

// PrincipalID returns the request principal, the identity established by
// the first factor.
func PrincipalID(req *api.Request) (string, error) {
	if req == nil || strings.TrimSpace(req.Principal) == "" {
		return "", ErrNoPrincipal
	}
	return req.Principal, nil
}

// LookupSetup builds a Setup that loads the account from st. A nil id uses
// PrincipalID. A missing registration reports ErrNotProvisioned.
func LookupSetup(st store.Store, id AccountIDFunc) Setup {
	if id == nil {
		id = PrincipalID
	}
	return func(ctx context.Context, req *api.Request, done Done) {
		accountID, err := id(req)
		if err != nil {
			done(Account{}, err)
			return
		}

		reg, err := st.Get(ctx, accountID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			done(Account{}, fmt.Errorf("%w: %s", ErrNotProvisioned, accountID))
		case err != nil:
			done(Account{}, err)
		default:
			done(FromRegistration(reg), nil)
		}
	}
}

var _ api.Strategy = (*OTP)(nil)
