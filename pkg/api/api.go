package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-twofactor/pkg/otp"
)

// FailureReason is the message carried by every failed code check. It does
// not distinguish a wrong code from an expired or replayed one.
const FailureReason = "invalid code"

var (
	// ErrNoStrategies indicates the pipeline was used without any strategies.
	ErrNoStrategies = errors.New("api: no authentication strategies configured")
	// ErrStrategyNotFound indicates a requested strategy name does not exist.
	ErrStrategyNotFound = errors.New("api: requested strategy not configured")
	// ErrDuplicateStrategy indicates two strategies share a name.
	ErrDuplicateStrategy = errors.New("api: duplicate strategy name")
	// ErrAuthenticationFailed is the error form of a failure outcome.
	ErrAuthenticationFailed = errors.New("api: authentication failed")
)

// Kind classifies an Outcome.
type Kind int

const (
	// KindFailure means the credentials were checked and did not match.
	KindFailure Kind = iota
	// KindSuccess means the request is authenticated.
	KindSuccess
	// KindError means the credentials could not be checked.
	KindError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the result of running a strategy against a request.
type Outcome struct {
	Kind Kind
	// Principal is the authenticated identity on success.
	Principal string
	// Reason is the user-facing message on failure.
	Reason string
	// Cause is the underlying error on KindError.
	Cause error
	// Strategy names the strategy that produced the outcome.
	Strategy string
}

// Success reports an authenticated principal.
func Success(principal string) Outcome {
	return Outcome{Kind: KindSuccess, Principal: principal}
}

// Failure reports credentials that did not match.
func Failure(reason string) Outcome {
	if reason == "" {
		reason = FailureReason
	}
	return Outcome{Kind: KindFailure, Reason: reason}
}

// Error reports that the credentials could not be checked.
func Error(err error) Outcome {
	return Outcome{Kind: KindError, Cause: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Err returns the outcome as an error: nil on success, the cause on error
// and ErrAuthenticationFailed on failure.
func (o Outcome) Err() error {
	var err error
	switch o.Kind {
	case KindSuccess:
		return nil
	case KindError:
		err = o.Cause
		if err == nil {
			err = errors.New("api: unknown error")
		}
	default:
		err = fmt.Errorf("%w: %s", ErrAuthenticationFailed, o.Reason)
	}
	if o.Strategy != "" {
		return fmt.Errorf("%s: %w", o.Strategy, err)
	}
	return err
}

// Request carries the inputs a strategy may inspect.
type Request struct {
	// Principal is the identity established by an earlier factor, if any.
	Principal string
	// Form holds submitted body fields.
	Form url.Values
	// Query holds URL query parameters.
	Query url.Values
}

// FromHTTP builds a Request from r. Body fields are parsed for POST, PUT
// and PATCH requests.
func FromHTTP(r *http.Request, principal string) (*Request, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("api: failed to parse form: %w", err)
	}
	return &Request{
		Principal: principal,
		Form:      r.PostForm,
		Query:     r.URL.Query(),
	}, nil
}

// Value returns the first value of field, looking in the body before the
// query string.
func (r *Request) Value(field string) (string, bool) {
	if r == nil {
		return "", false
	}
	if vs, ok := r.Form[field]; ok && len(vs) > 0 {
		return vs[0], true
	}
	if vs, ok := r.Query[field]; ok && len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

// Authenticator is the capability a strategy provides.
type Authenticator interface {
	Authenticate(ctx context.Context, req *Request) Outcome
}

// Strategy is a named Authenticator registered with a Pipeline.
type Strategy interface {
	Authenticator
	Name() string
}

// StrategyFunc adapts a function to the Authenticator interface.
type StrategyFunc func(ctx context.Context, req *Request) Outcome

// Authenticate executes the underlying function.
func (f StrategyFunc) Authenticate(ctx context.Context, req *Request) Outcome {
	return f(ctx, req)
}

type namedStrategy struct {
	name string
	Authenticator
}

func (n namedStrategy) Name() string { return n.name }

// Named returns a Strategy called name backed by auth.
func Named(name string, auth Authenticator) Strategy {
	return namedStrategy{name: name, Authenticator: auth}
}

// Config contains the strategies a pipeline starts with.
type Config struct {
	Strategies []Strategy
	Logger     *slog.Logger
}

// Pipeline runs named strategies against requests.
// It is safe for concurrent use.
type Pipeline struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	order      []string
	logger     *slog.Logger
}

// NewPipeline builds a Pipeline from the supplied configuration.
func NewPipeline(cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		strategies: make(map[string]Strategy, len(cfg.Strategies)),
		logger:     logger,
	}
	for i, s := range cfg.Strategies {
		if s == nil {
			return nil, fmt.Errorf("api: strategy at index %d is nil", i)
		}
		if err := p.Use(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Use registers s under its name.
func (p *Pipeline) Use(s Strategy) error {
	if s == nil {
		return errors.New("api: strategy is nil")
	}
	name := strings.TrimSpace(s.Name())
	if name == "" {
		return errors.New("api: strategy name must not be empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.strategies[name]; ok {
		return fmt.Errorf("%w %q", ErrDuplicateStrategy, name)
	}
	p.strategies[name] = s
	p.order = append(p.order, name)
	return nil
}

// Names returns the registered strategy names in registration order.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

func (p *Pipeline) lookup(name string) (Strategy, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.strategies[name]
	return s, ok
}

// Authenticate runs the strategy called name.
func (p *Pipeline) Authenticate(ctx context.Context, name string, req *Request) Outcome {
	if p == nil {
		return Error(ErrNoStrategies)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		req = &Request{}
	}
	if err := ctx.Err(); err != nil {
		return Error(err)
	}

	s, ok := p.lookup(name)
	if !ok {
		return Error(fmt.Errorf("%w: %q", ErrStrategyNotFound, name))
	}

	out := s.Authenticate(ctx, req)
	out.Strategy = name
	if out.OK() && out.Principal == "" {
		out.Principal = req.Principal
	}

	switch out.Kind {
	case KindSuccess:
		p.logger.DebugContext(ctx, "authentication succeeded", "strategy", name, "principal", out.Principal)
	case KindFailure:
		p.logger.InfoContext(ctx, "authentication failed", "strategy", name, "principal", req.Principal)
	case KindError:
		p.logger.WarnContext(ctx, "authentication errored", "strategy", name, "principal", req.Principal, "error", out.Cause)
	}
	return out
}

// Chain requires every named strategy to succeed, in order. The principal
// established by each success is passed to the next strategy. The first
// outcome that is not a success is returned.
func (p *Pipeline) Chain(ctx context.Context, req *Request, names ...string) Outcome {
	if len(names) == 0 {
		return Error(ErrNoStrategies)
	}
	if req == nil {
		req = &Request{}
	}

	cur := *req
	var out Outcome
	for _, name := range names {
		out = p.Authenticate(ctx, name, &cur)
		if !out.OK() {
			return out
		}
		cur.Principal = out.Principal
	}
	return out
}

// Any tries the named strategies in order, or every registered strategy
// when no names are given, and returns the first success. When none
// succeeds the individual outcomes are joined: the result is an error if
// any strategy errored, otherwise a failure.
func (p *Pipeline) Any(ctx context.Context, req *Request, names ...string) Outcome {
	if p == nil {
		return Error(ErrNoStrategies)
	}
	if len(names) == 0 {
		names = p.Names()
	}
	if len(names) == 0 {
		return Error(ErrNoStrategies)
	}

	var errs []error
	errored := false
	for _, name := range names {
		out := p.Authenticate(ctx, name, req)
		if out.OK() {
			return out
		}
		if out.Kind == KindError {
			errored = true
		}
		errs = append(errs, out.Err())
		if ctx != nil && ctx.Err() != nil {
			break
		}
	}

	joined := errors.Join(errs...)
	if errored {
		return Error(joined)
	}
	out := Failure(FailureReason)
	out.Cause = joined
	return out
}

// codeAuthenticator describes authenticators that check a bare code, such
// as the fixed-secret otp.Authenticator.
type codeAuthenticator interface {
	Authenticate(ctx context.Context, code string) error
}

// OTP adapts a fixed-secret code authenticator into a Strategy named name.
// The code is read from field, in the body first and then the query string.
// otp.ErrInvalidCode becomes a failure; any other error is an error outcome.
func OTP(name, field string, auth codeAuthenticator) Strategy {
	return Named(name, StrategyFunc(func(ctx context.Context, req *Request) Outcome {
		code, ok := req.Value(field)
		if !ok || strings.TrimSpace(code) == "" {
			return Failure(FailureReason)
		}
		err := auth.Authenticate(ctx, code)
		switch {
		case err == nil:
			return Success(req.Principal)
		case errors.Is(err, otp.ErrInvalidCode):
			return Failure(FailureReason)
		default:
			return Error(err)
		}
	}))
}

var _ codeAuthenticator = (*otp.Authenticator)(nil)
