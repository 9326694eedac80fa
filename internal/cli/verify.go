package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-twofactor/pkg/api"
	"github.com/jeremyhahn/go-twofactor/pkg/clock"
	"github.com/jeremyhahn/go-twofactor/pkg/otp"
	"github.com/jeremyhahn/go-twofactor/pkg/strategy"
)

func newVerifyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a code against a secret or a stored account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if account, _ := cmd.Flags().GetString("account"); account != "" {
				return a.verifyAccount(cmd, account)
			}
			return a.verifySecret(cmd)
		},
	}

	f := cmd.Flags()
	f.String("code", "", "submitted code")
	f.String("secret", "", "base32 secret")
	f.String("account", "", "stored account to verify against")
	f.Int("window", 0, "steps tried around the expected one")
	addCodeFlags(cmd)

	_ = cmd.MarkFlagRequired("code")
	cmd.MarkFlagsOneRequired("secret", "account")
	cmd.MarkFlagsMutuallyExclusive("secret", "account")
	return cmd
}

func (a *app) window(cmd *cobra.Command) int {
	if cmd.Flags().Changed("window") {
		w, _ := cmd.Flags().GetInt("window")
		return w
	}
	return a.cfg.OTP.Window
}

func (a *app) verifier(cmd *cobra.Command) (*otp.Verifier, error) {
	opts := []otp.Option{otp.WithLogger(a.logger)}
	if at, _ := cmd.Flags().GetString("at"); at != "" {
		t, err := parseAt(at)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otp.WithClock(clock.Fixed(t)))
	}
	return otp.NewVerifier(opts...), nil
}

func (a *app) verifySecret(cmd *cobra.Command) error {
	secretFlag, _ := cmd.Flags().GetString("secret")
	secret, err := otp.DecodeSecret(secretFlag)
	if err != nil {
		return err
	}
	v, err := a.verifier(cmd)
	if err != nil {
		return err
	}

	p := a.codeParams(cmd)
	code, _ := cmd.Flags().GetString("code")
	req := otp.Request{
		Code:      code,
		Secret:    secret,
		Type:      p.typ,
		Algorithm: p.algorithm,
		Digits:    p.digits,
		Period:    p.period,
		Window:    a.window(cmd),
	}
	if p.typ == otp.TypeHOTP {
		req.Counter = otp.Counter(p.counter)
	}

	res := v.Verify(cmd.Context(), req)
	switch res.Outcome {
	case otp.OutcomeAccepted:
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "accepted (offset %d)\n", res.Offset)
		if p.typ == otp.TypeHOTP {
			fmt.Fprintln(out, "next counter:", res.NextCounter())
		}
		return nil
	case otp.OutcomeRejected:
		return ErrRejected
	default:
		return res.Err
	}
}

func (a *app) verifyAccount(cmd *cobra.Command, account string) error {
	ctx := cmd.Context()
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	v, err := a.verifier(cmd)
	if err != nil {
		return err
	}

	field := a.cfg.Strategy.CodeField
	s, err := strategy.NewWithStore(st,
		strategy.WithCodeField(field),
		strategy.WithPeriod(a.cfg.OTP.Period),
		strategy.WithWindow(a.window(cmd)),
		strategy.WithVerifier(v),
		strategy.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	code, _ := cmd.Flags().GetString("code")
	out := s.Authenticate(ctx, &api.Request{
		Principal: account,
		Form:      url.Values{field: {code}},
	})
	switch out.Kind {
	case api.KindSuccess:
		fmt.Fprintln(cmd.OutOrStdout(), "accepted:", out.Principal)
		return nil
	case api.KindFailure:
		return ErrRejected
	default:
		return out.Err()
	}
}
