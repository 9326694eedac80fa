// Package cli implements the otpctl commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-twofactor/pkg/config"
	"github.com/jeremyhahn/go-twofactor/pkg/logging"
	"github.com/jeremyhahn/go-twofactor/pkg/store"
)

// ErrRejected is returned by verify when the code does not match.
var ErrRejected = errors.New("code rejected")

type app struct {
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the otpctl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "otpctl",
		Short:         "Provision and verify TOTP/HOTP one-time passwords",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newRegisterCommand(a),
		newCodeCommand(a),
		newVerifyCommand(a),
		newParseCommand(),
	)
	return root
}

// Execute runs otpctl and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, a.cfg.Store.StoreConfig(), store.WithLogger(a.logger))
}

// parseAt reads an optional RFC 3339 instant, defaulting to now.
func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at: %w", err)
	}
	return t, nil
}
