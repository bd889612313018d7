package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pquerna/otp/totp"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/middleware"
)

type options struct {
	Config string `short:"c" long:"config" description:"Config file holding auth.totpSecret"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	secret := cfg.Auth.TOTPSecret
	if secret == "" {
		fmt.Fprintln(os.Stderr, "auth.totpSecret is not configured; transfers do not require a TOTP code")
		os.Exit(1)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		fmt.Printf("Error generating TOTP code: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Current TOTP Code: %s\n", code)
	fmt.Printf("Valid for: ~30 seconds\n")
	fmt.Printf("Send it as the %s header on /api/v1/transfers/*\n", middleware.TOTPHeader)
}
