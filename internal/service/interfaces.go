package service

import (
	"context"

	"market-scraper/pkg/crawler"
)

var (
	_ CrawlService         = (*crawler.Crawler)(nil)
	_ ConsolidationService = (*Consolidator)(nil)
)

// CrawlService runs one crawl and reports its progress while it runs.
type CrawlService interface {
	Run(ctx context.Context) (crawler.Report, error)
	StatusProvider
}

type StatusProvider interface {
	Status() crawler.Status
}

type ConsolidationService interface {
	Consolidate(ctx context.Context) (*ConsolidationResult, error)
}
