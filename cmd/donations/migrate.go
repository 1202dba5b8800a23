package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/donation-gateway/internal/adapters/dynamo"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/postgres"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/sqlite"
	"github.com/DanielPopoola/donation-gateway/internal/config"
	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema for the configured store",
		Long: `Apply the donation schema to the configured store.

postgres: runs the embedded SQL migrations.
sqlite:   opens the database file, which applies the schema.
dynamodb: creates the donations table and, with the dynamodb rate
          limiter, the counter table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runMigrate(ctx, *configPath)
		},
	}
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := cfg.Logger.NewLogger()

	switch cfg.Store.Driver {
	case "postgres":
		db, err := postgres.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}

	case "sqlite":
		repo, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		_ = repo.Close()

	case "dynamodb":
		if err := migrateDynamo(ctx, cfg, logger); err != nil {
			return err
		}
	}

	logger.Info("schema up to date", "store", cfg.Store.Driver)
	return nil
}

func migrateDynamo(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client, err := dynamo.NewClient(ctx, cfg.Dynamo)
	if err != nil {
		return err
	}
	if err := dynamo.EnsureDonationTable(ctx, client, cfg.Dynamo.Table); err != nil {
		return err
	}
	logger.Info("donation table ready", "table", cfg.Dynamo.Table)

	if cfg.RateLimit.Backend == "dynamodb" {
		if err := dynamo.EnsureCounterTable(ctx, client, cfg.RateLimit.Table); err != nil {
			return err
		}
		logger.Info("rate limit table ready", "table", cfg.RateLimit.Table)
	}
	return nil
}
