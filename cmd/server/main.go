package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/indianamx/buenfinbot/internal/attribution"
	"github.com/indianamx/buenfinbot/internal/campaign"
	"github.com/indianamx/buenfinbot/internal/config"
	"github.com/indianamx/buenfinbot/internal/database"
	"github.com/indianamx/buenfinbot/internal/extraction"
	"github.com/indianamx/buenfinbot/internal/flow"
	"github.com/indianamx/buenfinbot/internal/inventory"
	"github.com/indianamx/buenfinbot/internal/ledger"
	"github.com/indianamx/buenfinbot/internal/migrations"
	"github.com/indianamx/buenfinbot/internal/server"
	"github.com/indianamx/buenfinbot/internal/session"
	"github.com/indianamx/buenfinbot/internal/whatsapp"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if err := campaign.ValidateTiers(campaign.DefaultTiers); err != nil {
		return fmt.Errorf("tier table: %w", err)
	}

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Redis ---
	rdb, err := openRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("connected to redis")

	// --- Campaign wiring ---
	ldgStore := ledger.NewSQLiteStore(db)
	stock := inventory.NewStore(rdb)
	reconciler := inventory.NewReconciler(stock, rdb, ldgStore, campaign.DefaultCapacity, cfg.SyncMaxAge, logger)

	// First boot seeds the stock cache from capacity minus confirmed
	// assignments; later boots skip while the last sync is fresh.
	if report, err := reconciler.Sync(ctx, false); err != nil {
		return fmt.Errorf("reconciling inventory: %w", err)
	} else if report.Ran {
		logger.Info("inventory reconciled", "changes", len(report.Changes))
	}

	sellers, err := attribution.LoadRegistry(cfg.SellersFile)
	if err != nil {
		return fmt.Errorf("loading sellers registry: %w", err)
	}
	logger.Info("sellers registry loaded", "codes", len(sellers.Codes()))

	broker := server.NewBroker()
	ldg := server.NewEventLedger(ldgStore, broker)

	wa := whatsapp.NewClient(cfg.WhatsAppToken, cfg.WhatsAppPhoneID)
	extractor := extraction.NewClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAITimeout, cfg.OpenAIRetries)
	sessions := session.NewStore(rdb, cfg.SessionTTL)

	engine := flow.NewEngine(logger, sessions, stock, ldg, extractor, wa, wa, sellers, campaign.DefaultTiers)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:      logger,
		DB:          db,
		Redis:       rdb,
		Handler:     engine,
		Ledger:      ldg,
		Stock:       stock,
		Reconciler:  reconciler,
		Notifier:    wa,
		Broker:      broker,
		Sellers:     sellers,
		Tiers:       campaign.DefaultTiers,
		Capacity:    campaign.DefaultCapacity,
		VerifyToken: cfg.WebhookVerifyToken,
		BotPhone:    cfg.BotPhone,
		AutoSync:    cfg.AutoSyncOnReport,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
