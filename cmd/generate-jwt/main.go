package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/middleware"
)

type options struct {
	Config  string        `short:"c" long:"config" description:"Config file holding auth.jwtSecret"`
	Subject string        `long:"subject" required:"true" description:"Token subject, usually the user's wallet address"`
	Email   string        `long:"email" description:"Email claim"`
	TTL     time.Duration `long:"ttl" default:"24h" description:"Token lifetime"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: auth.jwtSecret is not configured")
		os.Exit(1)
	}

	tokenString, err := middleware.IssueToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, opts.Subject, opts.Email, opts.TTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("JWT Token Generated for Testing")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Println("Claims:")
	fmt.Printf("  Subject: %s\n", opts.Subject)
	if opts.Email != "" {
		fmt.Printf("  Email:   %s\n", opts.Email)
	}
	fmt.Printf("  Expires: %s\n", time.Now().Add(opts.TTL).Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:%d/api/v1/balances/<address>?chain_id=<id>\n", tokenString, cfg.Server.Port)
	fmt.Printf("  zkaccount-cli --session-token '%s' ...\n", tokenString)
}
