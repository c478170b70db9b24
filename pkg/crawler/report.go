package crawler

import (
	"time"

	"market-scraper/pkg/gate"
	"market-scraper/pkg/listing"
)

// CategoryReport is what one category branch produced.
type CategoryReport struct {
	Name        string
	Code        string
	State       State
	Pages       int
	FailedPages int
	Outcome     listing.Outcome
	Elapsed     time.Duration
	Err         error
}

// Report summarizes a finished crawl.
type Report struct {
	RunID            string
	StartedAt        time.Time
	Elapsed          time.Duration
	Categories       int
	CategoriesFailed int
	ListingsChecked  int
	ListingsPassed   int
	PerCategory      []CategoryReport
}

func newReport(runID string, started time.Time, cats []CategoryReport) Report {
	r := Report{
		RunID:       runID,
		StartedAt:   started,
		Elapsed:     time.Since(started),
		Categories:  len(cats),
		PerCategory: cats,
	}
	for _, c := range cats {
		if c.State == StateFailed {
			r.CategoriesFailed++
		}
		r.ListingsChecked += c.Outcome.Checked
		r.ListingsPassed += c.Outcome.Passed
	}
	return r
}

// Status is the live view served by the status endpoint.
type Status struct {
	RunID      string           `json:"run_id"`
	Phase      State            `json:"phase"`
	StartedAt  time.Time        `json:"started_at"`
	Elapsed    time.Duration    `json:"elapsed"`
	Gate       gate.Stats       `json:"gate"`
	Metrics    MetricsSnapshot  `json:"metrics"`
	Categories []CategoryStatus `json:"categories"`
}

// Status returns the current state of the crawl. Before Run is called it
// reports StateStart with empty counters.
func (c *Crawler) Status() Status {
	c.mu.RLock()
	s := Status{
		RunID:     c.runID,
		Phase:     c.phase,
		StartedAt: c.startedAt,
	}
	g, m := c.gate, c.metrics
	c.mu.RUnlock()

	if !s.StartedAt.IsZero() {
		s.Elapsed = time.Since(s.StartedAt)
	}
	if g != nil {
		s.Gate = g.Stats()
	}
	s.Metrics = m.Snapshot()
	s.Categories = m.Categories()
	return s
}
