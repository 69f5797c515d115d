package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/triad3/irpf-import/internal/app"
	"github.com/triad3/irpf-import/internal/config"
	"github.com/triad3/irpf-import/internal/logger"
	"github.com/triad3/irpf-import/internal/storage"
)

func main() {
	cliApp := &cli.App{
		Name:  "triad3",
		Usage: "Import and inspect IRPF declarations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "Account that owns the declarations",
				EnvVars: []string{"TRIAD3_ACCOUNT"},
			},
		},
		Commands: []*cli.Command{
			importCommand,
			showCommand,
			exportCommand,
			sweepCommand,
			migrateCommand,
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every command needs: configuration, a logger and the store.
type env struct {
	cfg   *config.Config
	log   zerolog.Logger
	ctx   context.Context
	store storage.Store
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)
	ctx := logger.WithContext(c.Context, log)

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.StorageBackend, err)
	}

	return &env{cfg: cfg, log: log, ctx: ctx, store: store}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn().Err(err).Msg("Failed to close storage")
	}
}

func requireAccount(c *cli.Context) (string, error) {
	account := c.String("account")
	if account == "" {
		return "", fmt.Errorf("--account is required")
	}
	return account, nil
}
