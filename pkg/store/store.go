package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-twofactor/pkg/otp"
)

var (
	// ErrNotFound indicates the account has no registration.
	ErrNotFound = errors.New("store: registration not found")
	// ErrInvalidRegistration indicates a registration that cannot be stored.
	ErrInvalidRegistration = errors.New("store: invalid registration")
	// ErrStaleCounter indicates the stored counter already reached the
	// requested value, e.g. because the same code was accepted concurrently.
	ErrStaleCounter = errors.New("store: counter already advanced")
)

// Registration is the persisted state of one account's second factor.
type Registration struct {
	AccountID string        `json:"account_id"`
	Secret    string        `json:"secret"`
	Type      otp.Type      `json:"type"`
	Algorithm otp.Algorithm `json:"algorithm,omitempty"`
	Digits    int           `json:"digits,omitempty"`
	Period    uint          `json:"period,omitempty"`
	// Counter is the HOTP floor: the next counter that may be accepted.
	Counter   uint64    `json:"counter"`
	Issuer    string    `json:"issuer,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromRecord builds the registration to persist for a freshly provisioned
// account.
func FromRecord(accountID string, rec *otp.Record) *Registration {
	reg := &Registration{
		AccountID: accountID,
		Secret:    rec.Secret,
		Type:      rec.Spec.Type,
		Algorithm: rec.Spec.Algorithm,
		Digits:    rec.Spec.Digits,
		Period:    rec.Spec.Period,
		Issuer:    rec.Spec.Issuer,
		Name:      rec.Spec.Name,
	}
	if rec.Spec.Counter != nil {
		reg.Counter = *rec.Spec.Counter
	}
	return reg
}

// Spec returns the provisioning spec that displays this registration again
// with its stored secret.
func (r *Registration) Spec() otp.Spec {
	spec := otp.Spec{
		Name:      r.Name,
		Type:      r.Type,
		Algorithm: r.Algorithm,
		Digits:    r.Digits,
		Period:    r.Period,
		Issuer:    r.Issuer,
		Secret:    r.Secret,
	}
	if spec.Name == "" {
		spec.Name = r.AccountID
	}
	if r.Type == otp.TypeHOTP {
		spec.Counter = otp.Counter(r.Counter)
	}
	return spec
}

func (r *Registration) validate() error {
	if r == nil {
		return fmt.Errorf("%w: registration is nil", ErrInvalidRegistration)
	}
	if strings.TrimSpace(r.AccountID) == "" {
		return fmt.Errorf("%w: account id must not be empty", ErrInvalidRegistration)
	}
	if strings.TrimSpace(r.Secret) == "" {
		return fmt.Errorf("%w: secret must not be empty", ErrInvalidRegistration)
	}
	if r.Type != otp.TypeTOTP && r.Type != otp.TypeHOTP {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidRegistration, string(r.Type))
	}
	return nil
}

// Store persists registrations keyed by account identity.
type Store interface {
	// Get returns the registration for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Registration, error)
	// Put creates or replaces a registration.
	Put(ctx context.Context, reg *Registration) error
	// Delete removes the registration for id, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// AdvanceCounter raises the stored counter to next. Values at or below
	// the stored counter leave it unchanged and return ErrStaleCounter.
	AdvanceCounter(ctx context.Context, id string, next uint64) error
	// Close releases the backend connection.
	Close() error
}
