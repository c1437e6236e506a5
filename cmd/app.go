package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/adapters"
	"github.com/ayubfarah/dealer-ops-core/internal/clock"
	"github.com/ayubfarah/dealer-ops-core/internal/config"
	"github.com/ayubfarah/dealer-ops-core/internal/conversation"
	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/inventory"
	"github.com/ayubfarah/dealer-ops-core/internal/posting"
	"github.com/ayubfarah/dealer-ops-core/internal/realtime"
	"github.com/ayubfarah/dealer-ops-core/internal/scheduler"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
	"github.com/ayubfarah/dealer-ops-core/internal/store/pg"
	"github.com/ayubfarah/dealer-ops-core/internal/tenant"
)

// app bundles every long-lived component cmd/serve.go and cmd/scrape.go
// both need, so neither has to re-derive the wiring.
type app struct {
	cfg    *config.Config
	db     *pgxpool.Pool
	stores *store.Stores
	clock  clock.Clock

	jwt            *tenant.JWTIssuer
	resolver       *tenant.Resolver
	impersonation  *tenant.ImpersonationService
	passwordResets *tenant.PasswordResetService

	hub      *conversation.Hub
	outbound *conversation.Outbound

	fetcher inventory.ImageFetcher
	blob    inventory.BlobStore

	runner    *inventory.Runner
	importer  *inventory.BulkImporter
	engine    *posting.Engine
	tokens    *posting.TokenIssuer
	realtime  *realtime.Hub
	scheduler *scheduler.Scheduler
}

func buildApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	dbConfig.MaxConns = int32(cfg.DBMaxConns)
	dbConfig.MinConns = int32(cfg.DBMinConns)
	dbConfig.MaxConnLifetime = cfg.DBMaxConnLife

	db, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stores := pg.NewStores(db)
	clk := clock.Real{}

	jwtIssuer := tenant.NewJWTIssuer(cfg.JWTSecret, cfg.JWTTokenTTL)
	resolver := tenant.NewResolver(stores, jwtIssuer, clk)
	impersonation := tenant.NewImpersonationService(stores, jwtIssuer, clk)
	passwordResets := tenant.NewPasswordResetService(stores, clk, cfg.BcryptCost)

	crmAdapter := adapters.NewCRM(cfg.CRMBaseURL, stores.ApiLogs, logger)
	miner := conversation.NewMiner()
	aiModel := adapters.NewAIModel(cfg.AIBaseURL, cfg.DefaultAIAPIKey, stores.ApiLogs, logger)
	aiReplier := conversation.NewAIReplier(stores, clk, aiModel)
	hub := conversation.NewHub(stores, clk, miner, aiReplier)

	var fallback conversation.FallbackSink
	if cfg.EmailBaseURL != "" {
		fallback = adapters.NewEmail(cfg.EmailBaseURL, cfg.DefaultCRMAPIKey, cfg.EmailFromAddress, stores.ApiLogs, logger)
	}
	outbound := conversation.NewOutbound(stores, clk, crmAdapter, fallback)

	fetcher := adapters.NewHTTPImageFetcher()
	var blob inventory.BlobStore
	if cfg.BlobBucket != "" && cfg.AWSAccessKeyID != "" {
		s3Blob, err := adapters.NewS3Blob(ctx, cfg.BlobRegion, cfg.BlobBucket, cfg.AWSAccessKeyID, cfg.AWSSecretKey)
		if err != nil {
			return nil, fmt.Errorf("init blob store: %w", err)
		}
		blob = s3Blob
	}
	extractor := adapters.NewRegexExtractor()
	providers := []inventory.Provider{
		inventory.NewProviderA(),
		inventory.NewProviderB(),
		inventory.NewProviderC(),
		inventory.NewProviderD(cfg.BrowserAutomationURL),
	}

	realtimeHub := realtime.NewHub(jwtIssuer, logger)
	runner := inventory.NewRunner(stores, clk, providers, extractor, fetcher, blob, realtimeHub)
	importer := inventory.NewBulkImporter(stores.Vehicles)

	automation := adapters.NewBrowserAutomation(cfg.BrowserAutomationURL, stores.ApiLogs, logger)
	engine := posting.NewEngine(stores, clk, automation, realtimeHub, logger)
	tokenIssuer := posting.NewTokenIssuer(stores, clk)

	sched := scheduler.New(stores, clk, func(ctx context.Context, dealershipID int64, trigger domain.ScrapeTrigger) {
		settings, err := stores.Settings.Get(ctx, dealershipID)
		if err != nil {
			logger.Error("scheduler.trigger.settings", "error", err, "dealershipId", dealershipID)
			return
		}
		if _, err := runner.Run(ctx, dealershipID, settings.ScraperSourceURLs, trigger); err != nil {
			logger.Error("scheduler.trigger.run", "error", err, "dealershipId", dealershipID)
		}
	}, logger)

	return &app{
		cfg: cfg, db: db, stores: stores, clock: clk,
		jwt: jwtIssuer, resolver: resolver, impersonation: impersonation, passwordResets: passwordResets,
		hub: hub, outbound: outbound,
		fetcher: fetcher, blob: blob,
		runner: runner, importer: importer, engine: engine, tokens: tokenIssuer,
		realtime: realtimeHub, scheduler: sched,
	}, nil
}
