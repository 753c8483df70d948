// Command hotpotctl is the operator CLI for the Hotpot storefront backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/alanyoungcy/hotpot/internal/app"
	s3blob "github.com/alanyoungcy/hotpot/internal/blob/s3"
	"github.com/alanyoungcy/hotpot/internal/config"
	"github.com/alanyoungcy/hotpot/internal/crypto"
	"github.com/alanyoungcy/hotpot/internal/listing"
	"github.com/alanyoungcy/hotpot/internal/prizepool"
	"github.com/alanyoungcy/hotpot/internal/store/postgres"
)

func main() {
	cliApp := &cli.App{
		Name:  "hotpotctl",
		Usage: "operate the Hotpot storefront backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.toml", Usage: "path to configuration file (empty for defaults and env only)"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:   "prize-pool",
				Usage:  "print the prize pool banner values",
				Action: prizePool,
			},
			{
				Name:   "expirations",
				Usage:  "print the listing expiration options",
				Action: expirations,
			},
			{
				Name:   "list",
				Usage:  "list a token on the marketplace: approve then makeItem",
				Action: listToken,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "collection", Required: true, Usage: "NFT collection address"},
					&cli.StringFlag{Name: "token", Required: true, Usage: "token id"},
					&cli.StringFlag{Name: "price", Required: true, Usage: "price in ETH"},
					&cli.StringFlag{Name: "expiration", Value: listing.DefaultExpiration().Value, Usage: "expiration option value"},
				},
			},
			{
				Name:   "encrypt-key",
				Usage:  "encrypt a private key into a key file for wallet.encrypted_key_path",
				Action: encryptKey,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Required: true, Usage: "output file"},
					&cli.StringFlag{Name: "key", EnvVars: []string{"HOTPOT_WALLET_PRIVATE_KEY"}, Usage: "hex private key (prompted when empty)"},
				},
			},
			{
				Name:   "archive-audit",
				Usage:  "export audit entries older than a cutoff to object storage",
				Action: archiveAudit,
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "older-than", Value: 30 * 24 * time.Hour, Usage: "export entries older than this"},
					&cli.BoolFlag{Name: "purge", Usage: "delete the exported entries from postgres"},
				},
			},
			{
				Name:   "receipts",
				Usage:  "list archived listing receipts",
				Action: receipts,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "collection", Usage: "only this collection"},
					&cli.StringFlag{Name: "token", Usage: "only this token id (requires --collection)"},
					&cli.StringFlag{Name: "show", Usage: "print the receipt stored at this path"},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "hotpotctl: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds a text logger on stderr.
func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	level := slog.LevelWarn
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func prizePool(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	var source prizepool.Source
	if cfg.PrizePool.Source == "http" {
		source = app.PrizePoolSource(cfg, nil)
	} else {
		client, _, err := app.OpenChain(c.Context, cfg, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		source = app.PrizePoolSource(cfg, client.Marketplace(cfg.Chain.Marketplace()))
	}

	view, err := prizepool.NewDisplay(source, logger).Load(c.Context)
	if err != nil {
		return err
	}
	return printJSON(view)
}

func expirations(c *cli.Context) error {
	for _, o := range listing.ExpirationOptions() {
		fmt.Printf("%-10s %s\n", o.Value, o.Label)
	}
	fmt.Printf("default: %s\n", listing.DefaultExpiration().Value)
	return nil
}

// listToken drives a wizard headlessly through every step.
func listToken(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(c.String("collection")) {
		return fmt.Errorf("invalid collection address %q", c.String("collection"))
	}
	tokenID, ok := new(big.Int).SetString(c.String("token"), 10)
	if !ok || tokenID.Sign() < 0 {
		return fmt.Errorf("invalid token id %q", c.String("token"))
	}

	client, wallet, err := app.OpenChain(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()
	if wallet == nil {
		return crypto.ErrNoKey
	}

	item := listing.Item{Collection: common.HexToAddress(c.String("collection")), TokenID: tokenID}
	deps := &app.Dependencies{Chain: client, Wallet: wallet, Marketplace: client.Marketplace(cfg.Chain.Marketplace())}
	wizard := listing.NewWizard(item, deps.ListingDeps(item),
		listing.WithToaster(app.NewNotifier(cfg, nil, logger)),
		listing.WithLogger(logger),
		listing.WithOnStateChange(func(s listing.State) {
			if s.Validating {
				fmt.Fprintln(os.Stderr, listing.LabelAwaitingValidation+"...")
			} else if s.Loading {
				fmt.Fprintln(os.Stderr, listing.LabelAwaitingApproval+"...")
			}
		}),
	)

	if err := wizard.Next(); err != nil {
		return err
	}
	if err := wizard.SetPrice(c.String("price")); err != nil {
		return err
	}
	if alert := wizard.State().Alert; alert != "" {
		return fmt.Errorf("%s", alert)
	}
	if err := wizard.SetExpiration(c.String("expiration")); err != nil {
		return err
	}
	if err := wizard.CheckSubmit(); err != nil {
		return err
	}
	if err := wizard.Submit(c.Context); err != nil {
		return err
	}
	return printJSON(wizard.State().View())
}

func encryptKey(c *cli.Context) error {
	key := c.String("key")
	if key == "" {
		k, err := prompt("private key: ")
		if err != nil {
			return err
		}
		key = k
	}
	password, err := prompt("password: ")
	if err != nil {
		return err
	}
	confirm, err := prompt("confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	data, err := crypto.EncryptKey(key, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.String("out"), data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	addr, err := crypto.KeyFileAddress(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s for account %s\n", c.String("out"), addr.Hex())
	return nil
}

// prompt reads a line from the terminal without echo.
func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return string(b), nil
}

func archiveAudit(c *cli.Context) error {
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}
	pg, err := app.OpenPostgres(c.Context, cfg)
	if err != nil {
		return err
	}
	defer pg.Close()
	s3c, err := app.OpenS3(c.Context, cfg)
	if err != nil {
		return err
	}

	audit := postgres.NewAuditStore(pg.Pool())
	archiver := s3blob.NewArchiver(s3blob.NewWriter(s3c), s3blob.NewReader(s3c), audit)
	before := time.Now().UTC().Add(-c.Duration("older-than"))
	n, err := archiver.ExportAudit(c.Context, before)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d audit entries older than %s\n", n, before.Format(time.RFC3339))
	if n == 0 || !c.Bool("purge") {
		return nil
	}
	purged, err := audit.Purge(c.Context, before)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d audit entries\n", purged)
	return nil
}

func receipts(c *cli.Context) error {
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}
	s3c, err := app.OpenS3(c.Context, cfg)
	if err != nil {
		return err
	}
	archiver := s3blob.NewArchiver(s3blob.NewWriter(s3c), s3blob.NewReader(s3c), nil)
	if path := c.String("show"); path != "" {
		rec, err := archiver.Receipt(c.Context, path)
		if err != nil {
			return err
		}
		return printJSON(rec)
	}
	infos, err := archiver.Receipts(c.Context, c.String("collection"), c.String("token"))
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("%s\t%d\t%s\n", info.LastModified.Format(time.RFC3339), info.Size, info.Path)
	}
	return nil
}
