package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"zkaccount-backend/internal/app"
	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/keyvault"
	"zkaccount-backend/internal/models"
	"zkaccount-backend/internal/services"
)

type globalOptions struct {
	Config       string `short:"c" long:"config" description:"Config file (default config.local.yaml or config.yaml)"`
	Chain        int64  `long:"chain" description:"Chain id" required:"true"`
	Keystore     string `long:"keystore" description:"Encrypted keystore file; the passphrase is prompted. Without it ZKACCOUNT_PRIVATE_KEY is used"`
	SessionToken string `long:"session-token" env:"ZKACCOUNT_SESSION_TOKEN" description:"Session token presented to the proof issuer"`
	NoWait       bool   `long:"no-wait" description:"Exit after submission instead of waiting for settlement"`
	Verbose      bool   `short:"v" long:"verbose" description:"Debug logging"`
}

var opts globalOptions

type createAccountCommand struct {
	Email        string `long:"email" required:"true" description:"Email bound to the account"`
	Salt         string `long:"salt" default:"0" description:"Deployment salt (decimal)"`
	RequireProof bool   `long:"require-proof" description:"Require a ZK proof for every spend"`
}

type transferOptions struct {
	From   string `long:"from" required:"true" description:"ZK Account to spend from"`
	To     string `long:"to" required:"true" description:"Recipient address or email"`
	Amount string `long:"amount" required:"true" description:"Amount in human units, e.g. 1.5"`
}

type sendNativeCommand struct {
	transferOptions
}

type sendTokenCommand struct {
	transferOptions
	Token string `long:"token" required:"true" description:"ERC20 token address"`
}

type checkAccountCommand struct {
	Owner string `long:"owner" description:"Owner address (default: the signing key's address)"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("create-account", "Deploy a ZK Account", "Deploys a ZK Account for the signing key, or reports the existing one.", &createAccountCommand{})
	parser.AddCommand("send-native", "Send the native asset", "Spends the chain's native asset from a ZK Account.", &sendNativeCommand{})
	parser.AddCommand("send-token", "Send an ERC20 token", "Spends an ERC20 token from a ZK Account.", &sendTokenCommand{})
	parser.AddCommand("check-account", "Show an owner's ZK Account", "Reports whether the owner has a deployed ZK Account and its state.", &checkAccountCommand{})

	// errors are printed by the parser
	if _, err := parser.Parse(); err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// cliRuntime services of one command invocation
type cliRuntime struct {
	cfg       *config.Config
	logger    *logrus.Logger
	container *app.ServiceContainer
	session   *services.Session
}

func withRuntime(fn func(ctx context.Context, rt *cliRuntime) error) error {
	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		return err
	}
	logger := cfg.Logging.NewLogger()
	logger.SetOutput(os.Stderr)
	if !opts.Verbose {
		logger.SetLevel(logrus.WarnLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	container, err := app.InitializeContainer(cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, &cliRuntime{
		cfg:       cfg,
		logger:    logger,
		container: container,
		session:   services.NewSession(container.Resolver, opts.Chain),
	})
}

// loadSigner opens --keystore (prompting for the passphrase) or ZKACCOUNT_PRIVATE_KEY
func loadSigner() (*keyvault.KeyVault, error) {
	if opts.Keystore != "" {
		blob, err := os.ReadFile(opts.Keystore)
		if err != nil {
			return nil, fmt.Errorf("read keystore: %w", err)
		}
		passphrase, err := readPassword("Keystore passphrase: ")
		if err != nil {
			return nil, fmt.Errorf("read passphrase: %w", err)
		}
		return keyvault.DecryptJSON(blob, string(passphrase))
	}
	if hexKey := os.Getenv("ZKACCOUNT_PRIVATE_KEY"); hexKey != "" {
		return keyvault.FromHex(hexKey)
	}
	return nil, errors.New("no signing key: pass --keystore or set ZKACCOUNT_PRIVATE_KEY")
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return password, nil
}

// settlementWaiter returns the onSettled callback and a wait function for it
func (rt *cliRuntime) settlementWaiter() (func(models.Settlement), func(ctx context.Context)) {
	done := make(chan models.Settlement, 1)
	onSettled := func(s models.Settlement) { done <- s }
	wait := func(ctx context.Context) {
		if opts.NoWait {
			return
		}
		fmt.Println("Waiting for settlement...")
		// the tracker reports its own timeout; the margin covers delivery
		timer := time.NewTimer(rt.cfg.Confirmation.Timeout + 5*time.Second)
		defer timer.Stop()
		select {
		case s := <-done:
			printSettlement(s)
		case <-timer.C:
			fmt.Println("Settlement: not reported in time")
		case <-ctx.Done():
			fmt.Println("Settlement: wait interrupted")
		}
	}
	return onSettled, wait
}

func (c *createAccountCommand) Execute(_ []string) error {
	salt, ok := new(big.Int).SetString(strings.TrimSpace(c.Salt), 10)
	if !ok || salt.Sign() < 0 {
		return fmt.Errorf("invalid salt %q", c.Salt)
	}
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	defer signer.Clear()

	return withRuntime(func(ctx context.Context, rt *cliRuntime) error {
		profile, release, err := rt.session.Begin(ctx)
		if err != nil {
			return err
		}
		defer release()

		onSettled, wait := rt.settlementWaiter()
		out, err := rt.container.Factory.Create(ctx, profile, signer, services.CreateAccountRequest{
			Email:        c.Email,
			Salt:         salt,
			RequireProof: c.RequireProof,
			ChainID:      profile.ChainID,
		}, onSettled)
		printOutcome(out)
		if err != nil {
			return err
		}
		if !out.AlreadyExisted {
			wait(ctx)
		}
		return nil
	})
}

func (c *sendNativeCommand) Execute(_ []string) error {
	return runTransfer(c.transferOptions, "")
}

func (c *sendTokenCommand) Execute(_ []string) error {
	if !common.IsHexAddress(c.Token) {
		return fmt.Errorf("invalid token address %q", c.Token)
	}
	return runTransfer(c.transferOptions, c.Token)
}

func runTransfer(t transferOptions, token string) error {
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	defer signer.Clear()

	return withRuntime(func(ctx context.Context, rt *cliRuntime) error {
		profile, release, err := rt.session.Begin(ctx)
		if err != nil {
			return err
		}
		defer release()

		onSettled, wait := rt.settlementWaiter()
		out, err := rt.container.Orchestrator.Transfer(ctx, profile, signer, &models.TransferRequest{
			FromZkAccount: t.From,
			To:            t.To,
			TokenAddress:  token,
			Amount:        t.Amount,
			ChainID:       profile.ChainID,
		}, models.SessionContext{BearerToken: opts.SessionToken}, onSettled)
		printOutcome(out)
		if err != nil {
			return err
		}
		wait(ctx)
		return nil
	})
}

func (c *checkAccountCommand) Execute(_ []string) error {
	var owner common.Address
	switch {
	case c.Owner != "":
		if !common.IsHexAddress(c.Owner) {
			return fmt.Errorf("invalid owner address %q", c.Owner)
		}
		owner = common.HexToAddress(c.Owner)
	default:
		signer, err := loadSigner()
		if err != nil {
			return err
		}
		owner = signer.Address()
		signer.Clear()
	}

	return withRuntime(func(ctx context.Context, rt *cliRuntime) error {
		profile, release, err := rt.session.Begin(ctx)
		if err != nil {
			return err
		}
		defer release()

		record, err := rt.container.Factory.Exists(ctx, profile, owner)
		if err != nil {
			return err
		}
		fmt.Printf("Owner:    %s\n", owner.Hex())
		fmt.Printf("Chain:    %s (%d)\n", profile.Name, profile.ChainID)
		if record == nil {
			predicted, err := rt.container.Factory.PredictAddress(ctx, profile, owner, new(big.Int))
			if err != nil {
				return err
			}
			fmt.Println("Account:  none")
			fmt.Printf("Predicted (salt 0): %s\n", predicted.Hex())
			return nil
		}
		fmt.Printf("Account:  %s\n", record.ZkAccountAddress.Hex())
		fmt.Printf("Proof:    %t\n", record.RequiresProof)
		if record.Nonce != nil {
			fmt.Printf("Nonce:    %s\n", record.Nonce)
		}
		if url := profile.AddressURL(record.ZkAccountAddress); url != "" {
			fmt.Printf("Explorer: %s\n", url)
		}
		return nil
	})
}

func printOutcome(out *models.TransferOutcome) {
	if out == nil {
		return
	}
	if !out.Success {
		fmt.Printf("Failed:   %s\n", out.ErrorKind)
		fmt.Printf("  %s\n", out.ErrorMessage)
		if out.Shortfall != nil {
			fmt.Printf("  Required:  %s %s\n", out.Shortfall.RequiredFormatted, out.Shortfall.Symbol)
			fmt.Printf("  Available: %s %s\n", out.Shortfall.AvailableFormatted, out.Shortfall.Symbol)
		}
		if out.Retryable {
			fmt.Println("  The operation can be retried.")
		}
		return
	}
	if out.AlreadyExisted {
		fmt.Printf("Account already exists: %s\n", out.ZkAccountAddress)
	} else if out.ZkAccountAddress != "" {
		fmt.Printf("Account:  %s\n", out.ZkAccountAddress)
	}
	if out.TxHash != "" {
		fmt.Printf("Tx hash:  %s\n", out.TxHash)
	}
	if out.ExplorerURL != "" {
		fmt.Printf("Explorer: %s\n", out.ExplorerURL)
	}
}

func printSettlement(s models.Settlement) {
	fmt.Printf("Settlement: %s\n", s.Status)
	if s.BlockNumber > 0 {
		fmt.Printf("  Block:    %d\n", s.BlockNumber)
		fmt.Printf("  Gas used: %d\n", s.GasUsed)
	}
	if s.Reason != "" {
		fmt.Printf("  Reason:   %s\n", s.Reason)
	}
}
