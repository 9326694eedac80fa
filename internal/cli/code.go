package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-twofactor/pkg/otp"
)

// codeParams are the generation parameters shared by code and verify.
type codeParams struct {
	typ       otp.Type
	algorithm otp.Algorithm
	digits    int
	period    uint
	counter   uint64
}

func addCodeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("type", "", "totp or hotp")
	f.String("algorithm", "", "SHA1, SHA256 or SHA512")
	f.Int("digits", 0, "code length")
	f.Uint("period", 0, "TOTP period in seconds")
	f.Uint64("counter", 0, "HOTP counter")
	f.String("at", "", "evaluate TOTP at this RFC 3339 instant instead of now")
}

func (a *app) codeParams(cmd *cobra.Command) codeParams {
	f := cmd.Flags()
	p := codeParams{
		typ:       otp.Type(a.cfg.OTP.Type),
		algorithm: otp.Algorithm(a.cfg.OTP.Algorithm),
		digits:    a.cfg.OTP.Digits,
		period:    a.cfg.OTP.Period,
	}
	if f.Changed("type") {
		t, _ := f.GetString("type")
		p.typ = otp.Type(strings.ToLower(t))
	}
	if f.Changed("algorithm") {
		alg, _ := f.GetString("algorithm")
		p.algorithm = otp.Algorithm(strings.ToUpper(alg))
	}
	if f.Changed("digits") {
		p.digits, _ = f.GetInt("digits")
	}
	if f.Changed("period") {
		p.period, _ = f.GetUint("period")
	}
	p.counter, _ = f.GetUint64("counter")
	return p
}

func newCodeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Print the current code for a secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secretFlag, _ := cmd.Flags().GetString("secret")
			secret, err := otp.DecodeSecret(secretFlag)
			if err != nil {
				return err
			}
			at, _ := cmd.Flags().GetString("at")
			now, err := parseAt(at)
			if err != nil {
				return err
			}

			p := a.codeParams(cmd)
			counter := p.counter
			if p.typ != otp.TypeHOTP {
				counter = otp.Step(now, p.period)
			}

			code, err := otp.Code(secret, counter, p.digits, p.algorithm)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}

	cmd.Flags().String("secret", "", "base32 secret")
	_ = cmd.MarkFlagRequired("secret")
	addCodeFlags(cmd)
	return cmd
}
