package service

import (
	"context"
	"fmt"
	"time"

	"market-scraper/pkg/logger"
	"market-scraper/pkg/storage"
)

// ConsolidationResult reports what a dedupe and merge pass did.
type ConsolidationResult struct {
	Files    map[string]int
	Merged   int
	Output   string
	Duration time.Duration
}

// Consolidator dedupes every category file and merges them into one output
// file.
type Consolidator struct {
	dir    string
	output string
	mode   storage.MergeMode
	log    *logger.Logger
}

func NewConsolidator(dir, output string, mode storage.MergeMode, log *logger.Logger) *Consolidator {
	return &Consolidator{
		dir:    dir,
		output: output,
		mode:   mode,
		log:    log.WithField("component", "consolidator"),
	}
}

// Consolidate runs DedupeAll then MergeAll. A file that fails to dedupe is
// logged and still merged as is.
func (c *Consolidator) Consolidate(ctx context.Context) (*ConsolidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	files, err := storage.DedupeAll(c.dir)
	if err != nil {
		c.log.WithError(err).Warn("Some category files could not be deduplicated")
	}
	for name, n := range files {
		c.log.WithFields(map[string]interface{}{"file": name, "urls": n}).Debug("Category file deduplicated")
	}

	merged, err := storage.MergeAll(c.dir, c.output, c.mode)
	if err != nil {
		return nil, fmt.Errorf("failed to merge category files: %w", err)
	}

	res := &ConsolidationResult{
		Files:    files,
		Merged:   merged,
		Output:   c.output,
		Duration: time.Since(start),
	}
	c.log.WithFields(map[string]interface{}{
		"files":    len(files),
		"merged":   merged,
		"output":   c.output,
		"mode":     string(c.mode),
		"duration": res.Duration.String(),
	}).Info("Category files consolidated")
	return res, nil
}
