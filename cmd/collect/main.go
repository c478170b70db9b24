// Command collect deduplicates the per-category result files and merges
// them into the output file without crawling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"market-scraper/internal/config"
	"market-scraper/internal/service"
	"market-scraper/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg, err := config.NewManager().Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Debug: cfg.Debug, Dir: cfg.Paths.LogDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	var svc service.ConsolidationService = service.NewConsolidator(cfg.Paths.JSONDir, cfg.OutputPath(), cfg.Merge(), log)
	res, err := svc.Consolidate(context.Background())
	if err != nil {
		log.WithError(err).Error("Consolidation failed")
		_ = log.Close()
		os.Exit(1)
	}
	fmt.Printf("Merged %d URLs from %d files into %s\n", res.Merged, len(res.Files), res.Output)
	_ = log.Close()
}
