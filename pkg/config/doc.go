// Package config loads otpctl configuration from a file and the
// environment.
//
// Files may be YAML, JSON or TOML. Every key can be overridden with an
// OTPCTL_ variable, dots replaced by underscores:
//
//	OTPCTL_STORE_DRIVER=redis
//	OTPCTL_STORE_REDIS_URL=redis://localhost:6379/0
//
// Loaded configurations are validated; a ValidationError names each
// offending key.
package config
