// Package logging builds the slog loggers used by otpctl and the examples.
//
// Loggers mask the values of sensitive keys such as secret and code before
// they reach the output, including inside groups and JSON payloads.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultMaskKeys are masked when Options.MaskKeys is nil.
var DefaultMaskKeys = []string{"secret", "code", "key", "password", "uri"}

// ErrUnknownFormat indicates an unsupported Options.Format.
var ErrUnknownFormat = errors.New("logging: unknown format")

// Options configures New.
type Options struct {
	// Level is debug, info, warn or error. Default: info.
	Level string
	// Format is "json" or "text". Default: text.
	Format string
	// Writer receives the output. Default: os.Stderr.
	Writer io.Writer
	// MaskKeys lists keys whose values are replaced by "***". Matching is
	// case-insensitive.
	MaskKeys []string
	// AddSource adds the calling file and line.
	AddSource bool
}

// ParseLevel converts a level name.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging: %w", err)
	}
	return l, nil
}

// New builds a masking logger.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, hopts)
	case "json":
		handler = slog.NewJSONHandler(w, hopts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	keys := opts.MaskKeys
	if keys == nil {
		keys = DefaultMaskKeys
	}
	return slog.New(NewMaskHandler(handler, keys)), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
