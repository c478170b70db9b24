// Package crawler drives a full crawl: category tree, paging, listing
// processing, all under one admission gate per category.
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-scraper/pkg/api"
	"market-scraper/pkg/category"
	"market-scraper/pkg/gate"
	"market-scraper/pkg/listing"
	"market-scraper/pkg/logger"
	"market-scraper/pkg/pager"
	"market-scraper/pkg/storage"
)

// DefaultMaxConcurrentTasks is used when the configured value is missing.
const DefaultMaxConcurrentTasks = 5

type Options struct {
	RootID             int
	MaxConcurrentTasks int
	MaxFanout          int
	PageSize           int
	PageDiscovery      pager.Strategy
	SiteURL            string
	Criteria           listing.Criteria

	// SaveJSON dumps the state payload of passing listings to
	// <JSONDir>/<category>.json.
	SaveJSON bool
	JSONDir  string
}

// Crawler runs one crawl at a time. Status may be called concurrently with
// Run.
type Crawler struct {
	opts       Options
	tree       *category.Tree
	enumerator *pager.Enumerator
	processor  *listing.Processor
	log        *logger.Logger

	mu        sync.RWMutex
	runID     string
	phase     State
	startedAt time.Time
	gate      *gate.Gate
	metrics   *Metrics
}

// New wires a crawler. Passing listings go to sink.
func New(client api.Client, sink listing.Sink, opts Options, log *logger.Logger) *Crawler {
	if opts.MaxConcurrentTasks < 1 {
		opts.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	if opts.RootID == 0 {
		opts.RootID = category.DefaultRootID
	}

	return &Crawler{
		opts: opts,
		tree: category.NewTree(client, opts.RootID, log),
		enumerator: pager.NewEnumerator(client, pager.Options{
			PageSize:  opts.PageSize,
			Strategy:  opts.PageDiscovery,
			MaxFanout: opts.MaxFanout,
		}, log),
		processor: listing.NewProcessor(client, opts.Criteria, sink, listing.ProcessorOptions{
			SiteURL:   opts.SiteURL,
			MaxFanout: opts.MaxFanout,
			KeepRaw:   opts.SaveJSON,
		}, log),
		log:     log.WithField("component", "crawler"),
		phase:   StateStart,
		metrics: NewMetrics(),
	}
}

// Run crawls every leaf category. Only a failure to load the root category
// is returned as an error; everything below it is isolated per category and
// shows up in the report.
func (c *Crawler) Run(ctx context.Context) (Report, error) {
	runID := uuid.NewString()
	started := time.Now()
	metrics := NewMetrics()
	log := c.log.WithField("run_id", runID)
	g := gate.New(c.opts.MaxConcurrentTasks, log)

	c.mu.Lock()
	c.runID = runID
	c.phase = StateStart
	c.startedAt = started
	c.gate = g
	c.metrics = metrics
	c.mu.Unlock()

	c.logCriteria(log)

	leaves, err := c.tree.BuildLeafSet(ctx)
	if err != nil {
		c.setPhase(StateAborted)
		log.WithError(err).Error("Failed to load category tree")
		return Report{RunID: runID, StartedAt: started, Elapsed: time.Since(started)}, err
	}
	for _, leaf := range leaves {
		metrics.Register(leaf.Name, leaf.ListingCode)
	}
	c.setPhase(StateCategoriesLoaded)
	log.WithField("categories", len(leaves)).Info(fmt.Sprintf("Found %d categories", len(leaves)))

	c.setPhase(StateRunning)
	progress := logger.NewProgressReporter(log, len(leaves), "Categories")
	reports := make([]CategoryReport, len(leaves))

	var wg sync.WaitGroup
	for i, leaf := range leaves {
		wg.Add(1)
		go func(i int, leaf category.Category) {
			defer wg.Done()
			defer progress.Update(1)
			reports[i] = c.runBranch(ctx, g, metrics, leaf, log)
		}(i, leaf)
	}
	wg.Wait()

	c.setPhase(StateFinished)
	report := newReport(runID, started, reports)
	log.WithFields(map[string]interface{}{
		"categories":        report.Categories,
		"categories_failed": report.CategoriesFailed,
		"listings_checked":  report.ListingsChecked,
		"listings_passed":   report.ListingsPassed,
		"elapsed":           report.Elapsed.Round(time.Millisecond).String(),
	}).Info("Crawl finished")
	return report, nil
}

// runBranch admits one category through the gate and processes it. A
// panic inside the branch is recovered and counted as a failure.
func (c *Crawler) runBranch(ctx context.Context, g *gate.Gate, m *Metrics, leaf category.Category, runLog *logger.Logger) (rep CategoryReport) {
	rep = CategoryReport{Name: leaf.Name, Code: leaf.ListingCode}
	log := runLog.WithFields(map[string]interface{}{
		"category": leaf.Name,
		"code":     leaf.ListingCode,
	})

	if err := g.Acquire(ctx); err != nil {
		rep.State, rep.Err = StateFailed, err
		m.RecordFailure(leaf.ListingCode, err, 0)
		return rep
	}
	defer g.Release()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Value: r}
			log.WithField("panic", r).Error("Category panicked")
			rep.State, rep.Err, rep.Elapsed = StateFailed, err, time.Since(start)
			m.RecordFailure(leaf.ListingCode, err, rep.Elapsed)
		}
	}()

	if err := c.processCategory(ctx, m, leaf, &rep, log); err != nil {
		rep.State, rep.Err, rep.Elapsed = StateFailed, err, time.Since(start)
		m.RecordFailure(leaf.ListingCode, err, rep.Elapsed)
		log.WithError(err).WithField("kind", string(api.Classify(err))).Warn("Category failed")
		return rep
	}
	rep.State, rep.Elapsed = StateDone, time.Since(start)
	m.RecordOutcome(leaf.ListingCode, rep.Outcome, rep.Elapsed)

	log.WithFields(map[string]interface{}{
		"pages":    rep.Pages,
		"checked":  rep.Outcome.Checked,
		"passed":   rep.Outcome.Passed,
		"rejected": rep.Outcome.Rejected,
		"skipped":  rep.Outcome.Skipped,
		"failed":   rep.Outcome.Failed,
		"elapsed":  rep.Elapsed.Round(time.Millisecond).String(),
	}).Info("Category done")
	return rep
}

func (c *Crawler) processCategory(ctx context.Context, m *Metrics, leaf category.Category, rep *CategoryReport, log *logger.Logger) error {
	m.SetState(leaf.ListingCode, StateEnumerating)
	enum, err := c.enumerator.FetchAllPages(ctx, leaf.ListingCode, leaf.Name)
	if err != nil {
		return err
	}
	rep.Pages, rep.FailedPages = enum.Pages, enum.FailedPages
	m.RecordPages(leaf.ListingCode, enum.Pages, enum.FailedPages, len(enum.Refs))
	log.WithFields(map[string]interface{}{
		"pages": enum.Pages,
		"refs":  len(enum.Refs),
	}).Debug("Category paged")

	m.SetState(leaf.ListingCode, StateProcessing)
	rep.Outcome = c.processor.ProcessAll(ctx, leaf.Name, enum.Refs)

	if c.opts.SaveJSON {
		path, err := storage.SaveJSON(c.opts.JSONDir, leaf.Name, rep.Outcome.Raw)
		if err != nil {
			log.WithError(err).Warn("Failed to save listing payloads")
		} else {
			log.WithField("path", path).Debug("Listing payloads saved")
		}
	}
	// the payloads are only kept for the dump
	rep.Outcome.Raw = nil
	return nil
}

func (c *Crawler) logCriteria(log *logger.Logger) {
	cr := c.opts.Criteria
	log.WithFields(map[string]interface{}{
		"seller_date":          cr.SellerDates.String(),
		"ads_date":             cr.ListingDates.String(),
		"ads_count":            cr.MinActiveListings,
		"price_min":            cr.Price.Min,
		"price_max":            cr.Price.Max,
		"rate":                 cr.Rate,
		"max_concurrent_tasks": c.opts.MaxConcurrentTasks,
		"max_fanout":           c.opts.MaxFanout,
		"page_discovery":       string(c.opts.PageDiscovery),
	}).Info("Starting crawl")
}

func (c *Crawler) setPhase(s State) {
	c.mu.Lock()
	c.phase = s
	c.mu.Unlock()
}

// PanicError wraps a panic value as an error
type PanicError struct {
	Value interface{}
}

func (pe *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", pe.Value)
}
