package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-twofactor/pkg/otp"
)

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse URI",
		Short: "Show the parameters of an otpauth:// key-URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := otp.ParseKeyURI(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "type\t%s\n", spec.Type)
			fmt.Fprintf(w, "name\t%s\n", spec.Name)
			fmt.Fprintf(w, "issuer\t%s\n", spec.Issuer)
			fmt.Fprintf(w, "algorithm\t%s\n", spec.Algorithm)
			fmt.Fprintf(w, "digits\t%d\n", spec.Digits)
			if spec.Type == otp.TypeHOTP && spec.Counter != nil {
				fmt.Fprintf(w, "counter\t%d\n", *spec.Counter)
			} else {
				fmt.Fprintf(w, "period\t%d\n", spec.Period)
			}
			fmt.Fprintf(w, "secret\t%s\n", spec.Secret)
			return w.Flush()
		},
	}
}
