package config

import (
	"github.com/jeremyhahn/go-twofactor/pkg/otp"
	"github.com/jeremyhahn/go-twofactor/pkg/store"
)

// Config is the complete application configuration.
type Config struct {
	OTP      OTP      `mapstructure:"otp"`
	Strategy Strategy `mapstructure:"strategy"`
	Store    Store    `mapstructure:"store"`
	Log      Log      `mapstructure:"log"`
}

// OTP holds provisioning and verification defaults.
type OTP struct {
	Issuer     string `mapstructure:"issuer"`
	Type       string `mapstructure:"type" validate:"oneof=totp hotp"`
	Algorithm  string `mapstructure:"algorithm" validate:"oneof=SHA1 SHA256 SHA512"`
	Digits     int    `mapstructure:"digits" validate:"min=6,max=8"`
	Period     uint   `mapstructure:"period" validate:"gt=0"`
	Window     int    `mapstructure:"window" validate:"min=0,max=20"`
	SecretSize int    `mapstructure:"secret_size" validate:"min=8,max=128"`
}

// Strategy configures the request adapter.
type Strategy struct {
	CodeField string `mapstructure:"code_field" validate:"required"`
}

// Store selects the registration backend.
type Store struct {
	Driver         string `mapstructure:"driver" validate:"oneof=memory redis postgres"`
	RedisURL       string `mapstructure:"redis_url" validate:"required_if=Driver redis"`
	PostgresDSN    string `mapstructure:"postgres_dsn" validate:"required_if=Driver postgres"`
	KeyPrefix      string `mapstructure:"key_prefix"`
	Table          string `mapstructure:"table"`
	EncryptionKey  string `mapstructure:"encryption_key" validate:"omitempty,base64"`
	ConnectRetries int    `mapstructure:"connect_retries" validate:"min=0,max=50"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// StoreConfig converts the store section for store.Open.
func (s Store) StoreConfig() store.Config {
	return store.Config{
		Driver:         s.Driver,
		RedisURL:       s.RedisURL,
		PostgresDSN:    s.PostgresDSN,
		KeyPrefix:      s.KeyPrefix,
		Table:          s.Table,
		EncryptionKey:  s.EncryptionKey,
		ConnectRetries: s.ConnectRetries,
	}
}

// Spec returns a registration spec for name carrying the configured
// defaults. HOTP specs start at counter zero.
func (o OTP) Spec(name string) otp.Spec {
	spec := otp.Spec{
		Name:       name,
		Type:       otp.Type(o.Type),
		Algorithm:  otp.Algorithm(o.Algorithm),
		Digits:     o.Digits,
		Period:     o.Period,
		Issuer:     o.Issuer,
		SecretSize: o.SecretSize,
	}
	if spec.Type == otp.TypeHOTP {
		spec.Counter = otp.Counter(0)
	}
	return spec
}
