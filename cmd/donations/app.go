package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/donation-gateway/internal/adapters/dynamo"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/notify"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/postgres"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/esewa"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/khalti"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/mock"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/provider/stripe"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/ratelimit"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/sqlite"
	"github.com/DanielPopoola/donation-gateway/internal/config"
	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// app is the wiring shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	repo      ports.DonationRepository
	providers *provider.Registry
	stripe    *stripe.Client
	esewa     *esewa.Client

	receipts     *service.ReceiptService
	orchestrator *service.Orchestrator
	queries      *service.DonationQueryService

	dynamoClient *dynamodb.Client
	closers      []func()
}

func loadApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.buildProviders()

	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.receipts = service.NewReceiptService(a.repo, notifier, cfg.Notify.Timeout, logger)
	a.orchestrator = service.NewOrchestrator(a.repo, a.providers, a.receipts, service.Config{
		PublicBaseURL:      cfg.Server.PublicBaseURL,
		StrictVerification: cfg.Primary.StrictReference,
	}, logger)
	a.queries = service.NewDonationQueryService(a.repo)

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case "postgres":
		db, err := postgres.Connect(ctx, &a.cfg.Database, a.logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.repo = postgres.NewDonationRepository(db.Pool)

	case "sqlite":
		repo, err := sqlite.Open(ctx, a.cfg.SQLite.Path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = repo.Close() })
		a.repo = repo
		a.logger.Info("using sqlite store", "path", a.cfg.SQLite.Path)

	case "dynamodb":
		client, err := a.dynamo(ctx)
		if err != nil {
			return err
		}
		a.repo = dynamo.NewDonationRepository(client, a.cfg.Dynamo.Table)
		a.logger.Info("using dynamodb store", "table", a.cfg.Dynamo.Table)

	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
	return nil
}

func (a *app) dynamo(ctx context.Context) (*dynamodb.Client, error) {
	if a.dynamoClient != nil {
		return a.dynamoClient, nil
	}
	client, err := dynamo.NewClient(ctx, a.cfg.Dynamo)
	if err != nil {
		return nil, err
	}
	a.dynamoClient = client
	return client, nil
}

// buildProviders registers only the adapters enabled by configuration.
// Live adapters are wrapped so status lookups retry transient failures.
func (a *app) buildProviders() {
	pc := a.cfg.Providers
	var adapters []ports.ProviderAdapter

	if pc.Stripe.Enabled {
		a.stripe = stripe.NewClient(pc.Stripe)
		adapters = append(adapters, provider.NewRetryAdapter(a.stripe, a.cfg.Retry))
	}
	if pc.Khalti.Enabled {
		adapters = append(adapters, provider.NewRetryAdapter(khalti.NewClient(pc.Khalti, pc.Timeout), a.cfg.Retry))
	}
	if pc.Esewa.Enabled {
		a.esewa = esewa.NewClient(pc.Esewa, pc.Timeout)
		adapters = append(adapters, provider.NewRetryAdapter(a.esewa, a.cfg.Retry))
	}
	if a.cfg.IsMock() && pc.Mock.Enabled {
		adapters = append(adapters, mock.New())
	}

	a.providers = provider.NewRegistry(adapters...)
	a.logger.Info("payment providers enabled",
		"mode", a.cfg.Primary.Mode,
		"providers", a.providers.Enabled(),
		"strict_reference", a.cfg.Primary.StrictReference,
	)
}

func (a *app) buildNotifier(ctx context.Context) (ports.ReceiptNotifier, error) {
	nc := a.cfg.Notify

	var primary ports.ReceiptNotifier = notify.NewLogNotifier(a.logger)
	if nc.URL != "" {
		primary = notify.NewHTTPNotifier(nc.URL, nc.Timeout)
	}
	if nc.ArchiveBucket == "" {
		return primary, nil
	}

	client, err := notify.NewS3Client(ctx, nc)
	if err != nil {
		return nil, fmt.Errorf("receipt archive: %w", err)
	}
	return notify.Fanout{primary, notify.NewS3Archive(client, nc.ArchiveBucket)}, nil
}

func (a *app) rateLimiter(ctx context.Context) (ports.RateLimiter, error) {
	rc := a.cfg.RateLimit
	if rc.Backend != "dynamodb" {
		return ratelimit.NewFixedWindow(rc.Limit, rc.Window), nil
	}
	client, err := a.dynamo(ctx)
	if err != nil {
		return nil, err
	}
	return ratelimit.NewDynamoCounter(client, rc.Table, rc.Limit, rc.Window), nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
