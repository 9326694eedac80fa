// Command otpctl provisions and checks TOTP/HOTP registrations.
package main

import "github.com/jeremyhahn/go-twofactor/internal/cli"

func main() {
	cli.Execute()
}
