package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"apartment-scraper/config"
	"apartment-scraper/metrics"
	"apartment-scraper/notifier"
	"apartment-scraper/scraper"
	"apartment-scraper/services"
	"apartment-scraper/storage"
	"apartment-scraper/utils"
)

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	store   *storage.PostgresStore
	metrics *metrics.Metrics
}

func main() {
	root := &cobra.Command{
		Use:   "apartment-scraper",
		Short: "Watch kleinanzeigen.de for new apartment listings",
		Long: `apartment-scraper searches the configured districts on a fixed interval,
stores every new listing in PostgreSQL and announces it on Telegram.

Running without a subcommand is the same as "run".`,
		SilenceUsage: true,
		RunE:         runLoop,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show stored listings, newest first",
		RunE:  listListings,
	}
	listCmd.Flags().String("status", "", "only show listings with this status (new, suitable, error)")
	listCmd.Flags().Int("limit", 20, "maximum number of listings")
	listCmd.Flags().String("csv", "", "also export the listings as CSV to this file (\"-\" for stdout)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Search continuously until interrupted",
			RunE:  runLoop,
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run a single search cycle and print its report",
			RunE:  runOnce,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the listings table",
			RunE:  migrate,
		},
		listCmd,
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and connects to the store. A missing
// DATABASE_URL stops the process.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingDatabaseURL) {
			utils.NewLogger().Error("[main] %v", err)
		}
		return nil, err
	}

	logger := utils.NewLoggerWithLevel(cfg.LogLevel)

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		logger.Error("[main] Failed to connect to PostgreSQL: %v", err)
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: metrics.New(prometheus.DefaultRegisterer),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("[main] Closing database pool: %v", err)
	}
	_ = a.logger.Sync()
}

// pipeline wires the orchestrator and returns the notifier it uses, which is
// nil when Telegram is not configured.
func (a *app) pipeline() (*services.Orchestrator, *notifier.Notifier) {
	gate := storage.NewGate(a.store)

	n := notifier.New(a.cfg, a.logger)
	var sink services.ListingNotifier
	if n != nil {
		sink = n
	}

	var filter *services.Filter
	if a.cfg.FilterEnabled {
		filter = services.NewFilter(a.cfg.NegativeKeywords)
		a.logger.Info("[main] Suitability filter enabled with %d keywords", len(a.cfg.NegativeKeywords))
	}

	processor := services.NewProcessor(gate, sink, filter, a.metrics, a.logger)

	open := func(ctx context.Context) (services.Session, error) {
		session, err := scraper.OpenSession(ctx, a.cfg, a.logger)
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return services.NewOrchestrator(open, processor, a.cfg, a.metrics, a.logger), n
}

func printBanner(a *app) {
	a.logger.Info("=== Apartment search service starting ===")
	a.logger.Info("Config: districts: %d | interval: %v | page load: %v | element wait: %v | notifications: %v",
		len(a.cfg.Search.Districts), a.cfg.CheckInterval, a.cfg.PageLoadTimeout,
		a.cfg.ElementTimeout, a.cfg.NotificationsEnabled())
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("invalid arguments: "+format, args...)
}
