package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"

	"github.com/jeremyhahn/go-twofactor/pkg/clock"
)

// Outcome classifies a verification result.
type Outcome int

const (
	// OutcomeRejected means no counter in the window produced the code.
	OutcomeRejected Outcome = iota
	// OutcomeAccepted means the code matched.
	OutcomeAccepted
	// OutcomeErrored means verification could not be attempted.
	OutcomeErrored
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Request is a single verification attempt.
type Request struct {
	// Code is the submitted code.
	Code string
	// Secret is the account's raw secret.
	Secret []byte
	// Type is the OTP type. Default: TypeTOTP.
	Type Type
	// Algorithm is the HMAC hash. Default: SHA1.
	Algorithm Algorithm
	// Digits is the expected code length. Default: DefaultDigits.
	Digits int
	// Period is the TOTP step in seconds. Default: DefaultPeriod.
	Period uint
	// Counter is the stored HOTP counter floor. Required for HOTP.
	Counter *uint64
	// Window is the number of steps tried on each side of the expected TOTP
	// step, or forward of the stored HOTP counter. Zero means exact match.
	Window int
}

// Result reports the outcome of a verification.
type Result struct {
	Outcome Outcome
	// Offset is the matched distance from the expected step or counter.
	Offset int64
	// Counter is the matched step (TOTP) or counter (HOTP).
	Counter uint64
	// Err is the cause of an errored outcome.
	Err error
}

// Accepted reports whether the code matched.
func (r Result) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}

// NextCounter returns the counter floor to persist after an accepted HOTP
// code, so that neither the matched code nor any earlier one is accepted
// again. For TOTP it can be stored as the last used step.
func (r Result) NextCounter() uint64 {
	return r.Counter + 1
}

func errored(err error) Result {
	return Result{Outcome: OutcomeErrored, Err: err}
}

// Verifier checks submitted codes against stored secrets.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	clock  clock.Clocker
	logger *slog.Logger
}

// NewVerifier creates a Verifier reading the system clock.
func NewVerifier(opts ...Option) *Verifier {
	o := buildOptions(opts)
	return &Verifier{clock: o.clock, logger: o.logger}
}

// Verify evaluates req.
//
// TOTP codes are tried at offsets 0, -1, +1, -2, +2 ... up to the window
// around the current step. HOTP codes are tried forward only, from the
// stored counter to counter+window. A malformed code is rejected; a missing
// secret or invalid parameters produce an errored result.
func (v *Verifier) Verify(ctx context.Context, req Request) Result {
	if v == nil {
		v = NewVerifier()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return errored(err)
	}

	if len(req.Secret) == 0 {
		return errored(fmt.Errorf("%w: secret must not be empty", ErrMalformedSecret))
	}
	if req.Type == "" {
		req.Type = TypeTOTP
	}
	if !req.Type.valid() {
		return errored(fmt.Errorf("%w: unsupported type %q", ErrMisconfigured, string(req.Type)))
	}
	if req.Digits == 0 {
		req.Digits = DefaultDigits
	}
	if req.Digits < MinDigits || req.Digits > MaxDigits {
		return errored(fmt.Errorf("%w: digits must be between %d and %d", ErrMisconfigured, MinDigits, MaxDigits))
	}
	if _, err := req.Algorithm.hash(); err != nil {
		return errored(fmt.Errorf("%w: %v", ErrMisconfigured, err))
	}
	if req.Window < 0 || req.Window > MaxWindow {
		return errored(fmt.Errorf("%w: window must be between 0 and %d", ErrMisconfigured, MaxWindow))
	}
	if req.Type == TypeHOTP && req.Counter == nil {
		return errored(fmt.Errorf("%w: hotp verification requires a counter", ErrMisconfigured))
	}

	code := strings.TrimSpace(req.Code)
	if !wellFormed(code, req.Digits) {
		v.logger.DebugContext(ctx, "otp code rejected", "reason", "malformed", "type", string(req.Type))
		return Result{Outcome: OutcomeRejected}
	}

	var res Result
	if req.Type == TypeHOTP {
		res = v.search(code, req, *req.Counter, hotpOffsets(req.Window))
	} else {
		res = v.search(code, req, Step(v.clock.Now(), req.Period), totpOffsets(req.Window))
	}

	switch res.Outcome {
	case OutcomeErrored:
		v.logger.WarnContext(ctx, "otp verification errored", "type", string(req.Type), "error", res.Err)
	case OutcomeRejected:
		v.logger.DebugContext(ctx, "otp code rejected", "reason", "no match", "type", string(req.Type), "window", req.Window)
	}
	return res
}

// search tries each offset from base in order and stops at the first match.
// The last uint64 counter is never tried: NextCounter could not exceed it.
func (v *Verifier) search(code string, req Request, base uint64, offsets iter.Seq[int64]) Result {
	for off := range offsets {
		counter, ok := shift(base, off)
		if !ok || counter == math.MaxUint64 {
			continue
		}
		want, err := Code(req.Secret, counter, req.Digits, req.Algorithm)
		if err != nil {
			return errored(err)
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return Result{Outcome: OutcomeAccepted, Offset: off, Counter: counter}
		}
	}
	return Result{Outcome: OutcomeRejected}
}

// totpOffsets yields 0, -1, +1, -2, +2, ... -window, +window.
func totpOffsets(window int) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		if !yield(0) {
			return
		}
		for k := int64(1); k <= int64(window); k++ {
			if !yield(-k) || !yield(k) {
				return
			}
		}
	}
}

// hotpOffsets yields 0, 1, ... window.
func hotpOffsets(window int) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for k := int64(0); k <= int64(window); k++ {
			if !yield(k) {
				return
			}
		}
	}
}

// shift applies off to base, reporting false when the result would leave
// the range of uint64.
func shift(base uint64, off int64) (uint64, bool) {
	if off < 0 {
		d := uint64(-off)
		if d > base {
			return 0, false
		}
		return base - d, true
	}
	d := uint64(off)
	if d > math.MaxUint64-base {
		return 0, false
	}
	return base + d, true
}

func wellFormed(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
