package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-twofactor/pkg/otp"
	"github.com/jeremyhahn/go-twofactor/pkg/store"
	"github.com/jeremyhahn/go-twofactor/pkg/strategy"
)

// EnvPrefix prefixes environment overrides, e.g. OTPCTL_STORE_DRIVER.
const EnvPrefix = "OTPCTL"

// ErrConfigType indicates LoadBytes was called without a format.
var ErrConfigType = errors.New("config: config type is required")

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		OTP: OTP{
			Type:       string(otp.TypeTOTP),
			Algorithm:  string(otp.AlgorithmSHA1),
			Digits:     otp.DefaultDigits,
			Period:     otp.DefaultPeriod,
			Window:     otp.DefaultWindow,
			SecretSize: otp.DefaultSecretSize,
		},
		Strategy: Strategy{CodeField: strategy.DefaultCodeField},
		Store:    Store{Driver: store.DriverMemory, ConnectRetries: 5},
		Log:      Log{Level: "info", Format: "text"},
	}
}

func newViper() *viper.Viper {
	v := viper.New()

	d := Defaults()
	v.SetDefault("otp.issuer", d.OTP.Issuer)
	v.SetDefault("otp.type", d.OTP.Type)
	v.SetDefault("otp.algorithm", d.OTP.Algorithm)
	v.SetDefault("otp.digits", d.OTP.Digits)
	v.SetDefault("otp.period", d.OTP.Period)
	v.SetDefault("otp.window", d.OTP.Window)
	v.SetDefault("otp.secret_size", d.OTP.SecretSize)
	v.SetDefault("strategy.code_field", d.Strategy.CodeField)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.key_prefix", "")
	v.SetDefault("store.table", "")
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.connect_retries", d.Store.ConnectRetries)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the configuration file at path, applies environment
// overrides and validates the result. An empty path loads defaults and
// environment only. The format is inferred from the file extension.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return decode(v)
}

// LoadBytes reads configuration from memory. configType is a format
// supported by viper, e.g. "yaml", "json" or "toml".
func LoadBytes(configType string, data []byte) (*Config, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, ErrConfigType
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return decode(v)
}

// Watch loads the file at path and calls onChange with every valid
// revision written afterwards. Invalid revisions are logged and skipped.
func Watch(path string, onChange func(*Config)) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(v)
		if err != nil {
			slog.Error("config reload failed", "path", filepath.Clean(e.Name), "err", err)
			return
		}
		slog.Info("config reloaded", "path", filepath.Clean(e.Name))
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	val, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if err := val.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
