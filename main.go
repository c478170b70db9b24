package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-scraper/internal/config"
	"market-scraper/internal/handler"
	"market-scraper/internal/service"
	"market-scraper/pkg/api"
	"market-scraper/pkg/crawler"
	"market-scraper/pkg/listing"
	"market-scraper/pkg/logger"
	"market-scraper/pkg/storage"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Configuration file path")
		debug      = flag.Bool("debug", false, "Enable debug logging on the console (env: MARKET_SCRAPER_DEBUG)")
		statusAddr = flag.String("status-addr", "", "Serve live crawl status on this address, e.g. :8080 (env: MARKET_SCRAPER_STATUS_ADDR)")
	)
	flag.Parse()

	os.Exit(run(*configPath, *debug, *statusAddr))
}

func run(configPath string, debug bool, statusAddr string) (code int) {
	cfg, err := config.NewManager().Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	if debug {
		cfg.Debug = true
	}
	if statusAddr != "" {
		cfg.StatusAddr = statusAddr
	}
	if err := cfg.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	log, err := logger.New(logger.Config{
		Level: cfg.LogLevel,
		Debug: cfg.Debug,
		Dir:   cfg.Paths.LogDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	defer log.Close()
	mainLog := log.WithField("component", "main")

	defer func() {
		if r := recover(); r != nil {
			mainLog.WithField("panic", r).Error("Application panic recovered")
			code = 1
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// registered before the store is closed so it sees every appended line,
	// and runs whether or not the crawl succeeded
	var consolidator service.ConsolidationService = service.NewConsolidator(cfg.Paths.JSONDir, cfg.OutputPath(), cfg.Merge(), log)
	defer func() {
		if _, err := consolidator.Consolidate(context.Background()); err != nil {
			mainLog.WithError(err).Error("Consolidation failed")
		}
	}()

	criteria, err := cfg.Criteria()
	if err != nil {
		mainLog.WithError(err).Error("Invalid filter criteria")
		return 1
	}

	client, err := api.NewHTTPClient(cfg.Connection(), log)
	if err != nil {
		mainLog.WithError(err).Error("Failed to create API client")
		return 1
	}

	store, err := storage.NewResultStore(cfg.Paths.JSONDir, log)
	if err != nil {
		mainLog.WithError(err).Error("Failed to open result store")
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			mainLog.WithError(err).Warn("Failed to close result store cleanly")
		}
	}()

	var sink listing.Sink = store
	if cfg.PostgresDSN != "" {
		if pg := openPostgres(ctx, cfg.PostgresDSN, mainLog); pg != nil {
			defer pg.Close()
			sink = storage.NewMirroredSink(store, log, pg)
		}
	}

	var crawl service.CrawlService = crawler.New(client, sink, crawler.Options{
		RootID:             cfg.RootCategoryID,
		MaxConcurrentTasks: cfg.MaxConcurrentTasks,
		MaxFanout:          cfg.MaxFanout,
		PageSize:           cfg.PageSize,
		PageDiscovery:      cfg.Strategy(),
		SiteURL:            cfg.SiteURL,
		Criteria:           criteria,
		SaveJSON:           cfg.SaveAds,
		JSONDir:            cfg.Paths.JSONDir,
	}, log)

	if cfg.StatusAddr != "" {
		srv := handler.NewStatusServer(crawl, log)
		go func() {
			if err := srv.Start(cfg.StatusAddr); err != nil {
				mainLog.WithError(err).Warn("Status server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				mainLog.WithError(err).Warn("Failed to stop status server")
			}
		}()
	}

	report, err := crawl.Run(ctx)
	if err != nil {
		mainLog.WithError(err).Error("Crawl aborted")
		return 1
	}

	total, failed := client.Stats()
	mainLog.WithFields(map[string]interface{}{
		"run_id":            report.RunID,
		"categories":        report.Categories,
		"categories_failed": report.CategoriesFailed,
		"listings_checked":  report.ListingsChecked,
		"listings_passed":   report.ListingsPassed,
		"requests":          total,
		"requests_failed":   failed,
		"duration":          report.Elapsed.Round(time.Second).String(),
	}).Info("Crawl completed")
	return 0
}

// openPostgres returns nil when the mirror cannot be used; the crawl then
// continues with file output only.
func openPostgres(ctx context.Context, dsn string, log *logger.Logger) *storage.PostgresSink {
	pg, err := storage.NewPostgresSink(ctx, dsn)
	if err != nil {
		log.WithError(err).Warn("Postgres mirror disabled")
		return nil
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		log.WithError(err).Warn("Postgres mirror disabled")
		pg.Close()
		return nil
	}
	log.Info("Postgres mirror enabled")
	return pg
}
