package otp

import (
	"fmt"
	"io"
	"log/slog"
)

// ImageEncoder renders a key-URI as a scannable image.
type ImageEncoder interface {
	// Encode returns the image payload for content.
	Encode(content string) ([]byte, error)
	// ContentType returns the MIME type of the payload, e.g. "image/png".
	ContentType() string
}

// Image is the display artifact attached to a Record.
type Image struct {
	ContentType string
	Data        []byte
}

// Record is the result of a registration. The caller persists Secret
// together with the period or counter, keyed by account identity.
type Record struct {
	// Secret is the unpadded base32 secret.
	Secret string
	// URI is the otpauth:// key-URI.
	URI string
	// Spec is the resolved registration spec.
	Spec Spec
	// Image is the rendered URI, or nil when no ImageEncoder is configured.
	Image *Image
}

// Provisioner mints secrets and key-URIs for new registrations.
// It holds no mutable state and is safe for concurrent use.
type Provisioner struct {
	random  io.Reader
	encoder ImageEncoder
	logger  *slog.Logger
}

// NewProvisioner creates a Provisioner. By default secrets are drawn from
// crypto/rand and no image is rendered.
func NewProvisioner(opts ...Option) *Provisioner {
	o := buildOptions(opts)
	return &Provisioner{
		random:  o.random,
		encoder: o.encoder,
		logger:  o.logger,
	}
}

// RegisterName registers an account with default settings, using name as
// the account name.
func (p *Provisioner) RegisterName(name string) (*Record, error) {
	return p.Register(Spec{Name: name})
}

// Register validates spec, generates a secret unless spec carries one, and
// assembles the key-URI. Validation failures report ErrInvalidSpec and no
// record is returned.
func (p *Provisioner) Register(spec Spec) (*Record, error) {
	if p == nil {
		p = NewProvisioner()
	}

	resolved, err := spec.resolve()
	if err != nil {
		return nil, err
	}

	secret := resolved.Secret
	if secret == "" {
		raw, err := GenerateSecretFrom(p.random, resolved.SecretSize)
		if err != nil {
			return nil, err
		}
		secret = EncodeSecret(raw)
		resolved.Secret = secret
	}

	rec := &Record{
		Secret: secret,
		URI:    keyURI(resolved, secret),
		Spec:   resolved,
	}

	if p.encoder != nil {
		data, err := p.encoder.Encode(rec.URI)
		if err != nil {
			return nil, fmt.Errorf("otp: failed to render key-uri image: %w", err)
		}
		rec.Image = &Image{ContentType: p.encoder.ContentType(), Data: data}
	}

	p.logger.Debug("otp registration provisioned",
		"label", resolved.Label(),
		"type", string(resolved.Type),
		"generated", spec.Secret == "")

	return rec, nil
}
