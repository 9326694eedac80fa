package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-twofactor/pkg/otp"
	"github.com/jeremyhahn/go-twofactor/pkg/qr"
	"github.com/jeremyhahn/go-twofactor/pkg/store"
)

func newRegisterCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register NAME",
		Short: "Generate a secret and key-URI for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.register(cmd, args[0])
		},
	}

	f := cmd.Flags()
	f.String("issuer", "", "issuer shown by authenticator apps")
	f.String("prefix", "", "label prefix (defaults to the issuer)")
	f.Bool("no-prefix", false, "do not prefix the label with the issuer")
	f.String("type", "", "totp or hotp")
	f.String("algorithm", "", "SHA1, SHA256 or SHA512")
	f.Int("digits", 0, "code length advertised in the key-URI")
	f.Uint("period", 0, "TOTP period in seconds")
	f.Uint64("counter", 0, "initial HOTP counter")
	f.Int("secret-size", 0, "random secret length in bytes")
	f.String("secret", "", "use this base32 secret instead of generating one")
	f.String("qr", "", "write a QR code to FILE (.png or .svg)")
	f.Bool("qr-terminal", false, "print the QR code to the terminal")
	f.String("save", "", "store the registration under ACCOUNT")
	return cmd
}

func (a *app) register(cmd *cobra.Command, name string) error {
	f := cmd.Flags()
	spec := a.cfg.OTP.Spec(name)

	if f.Changed("issuer") {
		spec.Issuer, _ = f.GetString("issuer")
	}
	spec.Prefix, _ = f.GetString("prefix")
	spec.NoPrefix, _ = f.GetBool("no-prefix")
	spec.Secret, _ = f.GetString("secret")
	if f.Changed("type") {
		t, _ := f.GetString("type")
		spec.Type = otp.Type(strings.ToLower(t))
	}
	if f.Changed("algorithm") {
		alg, _ := f.GetString("algorithm")
		spec.Algorithm = otp.Algorithm(strings.ToUpper(alg))
	}
	if f.Changed("digits") {
		spec.Digits, _ = f.GetInt("digits")
	}
	if f.Changed("period") {
		spec.Period, _ = f.GetUint("period")
	}
	if f.Changed("secret-size") {
		spec.SecretSize, _ = f.GetInt("secret-size")
	}
	if spec.Type == otp.TypeHOTP {
		n, _ := f.GetUint64("counter")
		spec.Counter = otp.Counter(n)
	}

	opts := []otp.Option{otp.WithLogger(a.logger)}
	qrFile, _ := f.GetString("qr")
	if qrFile != "" {
		if strings.HasSuffix(strings.ToLower(qrFile), ".svg") {
			opts = append(opts, otp.WithImageEncoder(qr.SVG{ModuleSize: 6}))
		} else {
			opts = append(opts, otp.WithImageEncoder(qr.PNG{Size: qr.DefaultSize}))
		}
	}

	rec, err := otp.NewProvisioner(opts...).Register(spec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "URI:   ", rec.URI)
	fmt.Fprintln(out, "Secret:", rec.Secret)

	if qrFile != "" {
		if err := os.WriteFile(qrFile, rec.Image.Data, 0o600); err != nil {
			return err
		}
		fmt.Fprintln(out, "Wrote: ", filepath.Clean(qrFile))
	}

	if show, _ := f.GetBool("qr-terminal"); show {
		art, err := qr.Terminal(rec.URI)
		if err != nil {
			return err
		}
		fmt.Fprint(out, art)
	}

	if account, _ := f.GetString("save"); account != "" {
		st, err := a.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Put(cmd.Context(), store.FromRecord(account, rec)); err != nil {
			return err
		}
		fmt.Fprintln(out, "Saved: ", account)
	}
	return nil
}
