package crawler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"market-scraper/pkg/listing"
)

// Metrics tracks crawl progress. Counters are atomic; per category state
// sits behind a mutex so the status endpoint can read it mid-crawl.
type Metrics struct {
	CategoriesTotal  atomic.Int64
	CategoriesDone   atomic.Int64
	CategoriesFailed atomic.Int64

	PagesFetched atomic.Int64
	PagesFailed  atomic.Int64

	ListingsChecked  atomic.Int64
	ListingsPassed   atomic.Int64
	ListingsRejected atomic.Int64
	ListingsSkipped  atomic.Int64
	ListingsFailed   atomic.Int64
	PersistErrors    atomic.Int64

	TotalDuration atomic.Uint64 // in nanoseconds
	MinDuration   atomic.Uint64 // in nanoseconds
	MaxDuration   atomic.Uint64 // in nanoseconds

	StartTime time.Time

	mu         sync.Mutex
	categories map[string]*CategoryStatus
}

// CategoryStatus is the live view of one category.
type CategoryStatus struct {
	Name      string        `json:"name"`
	Code      string        `json:"code"`
	State     State         `json:"state"`
	Pages     int           `json:"pages"`
	Refs      int           `json:"refs"`
	Checked   int           `json:"checked"`
	Passed    int           `json:"passed"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:  time.Now(),
		categories: make(map[string]*CategoryStatus),
	}
}

// Register adds a category in StateQueued.
func (m *Metrics) Register(name, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[code]; ok {
		return
	}
	m.categories[code] = &CategoryStatus{Name: name, Code: code, State: StateQueued}
	m.CategoriesTotal.Add(1)
}

// SetState moves a category to s. Entering StateEnumerating starts its
// clock.
func (m *Metrics) SetState(code string, s State) {
	m.update(code, func(cs *CategoryStatus) {
		cs.State = s
		if s == StateEnumerating {
			cs.StartedAt = time.Now()
		}
	})
}

// RecordPages stores what paging produced for a category.
func (m *Metrics) RecordPages(code string, pages, failed, refs int) {
	m.PagesFetched.Add(int64(pages - failed))
	m.PagesFailed.Add(int64(failed))
	m.update(code, func(cs *CategoryStatus) {
		cs.Pages = pages
		cs.Refs = refs
	})
}

// RecordOutcome marks a category done and adds its listing counters.
func (m *Metrics) RecordOutcome(code string, out listing.Outcome, elapsed time.Duration) {
	m.ListingsChecked.Add(int64(out.Checked))
	m.ListingsPassed.Add(int64(out.Passed))
	m.ListingsRejected.Add(int64(out.Rejected))
	m.ListingsSkipped.Add(int64(out.Skipped))
	m.ListingsFailed.Add(int64(out.Failed))
	m.PersistErrors.Add(int64(out.PersistErrors))
	m.CategoriesDone.Add(1)
	m.recordDuration(elapsed)

	m.update(code, func(cs *CategoryStatus) {
		cs.State = StateDone
		cs.Checked = out.Checked
		cs.Passed = out.Passed
		cs.Elapsed = elapsed
	})
}

// RecordFailure marks a category failed.
func (m *Metrics) RecordFailure(code string, err error, elapsed time.Duration) {
	m.CategoriesFailed.Add(1)
	m.recordDuration(elapsed)
	m.update(code, func(cs *CategoryStatus) {
		cs.State = StateFailed
		cs.Elapsed = elapsed
		if err != nil {
			cs.Error = err.Error()
		}
	})
}

func (m *Metrics) update(code string, fn func(*CategoryStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.categories[code]
	if !ok {
		cs = &CategoryStatus{Code: code}
		m.categories[code] = cs
		m.CategoriesTotal.Add(1)
	}
	fn(cs)
}

func (m *Metrics) recordDuration(duration time.Duration) {
	nanos := uint64(duration.Nanoseconds())
	m.TotalDuration.Add(nanos)

	for {
		current := m.MinDuration.Load()
		if current != 0 && nanos >= current {
			break
		}
		if m.MinDuration.CompareAndSwap(current, nanos) {
			break
		}
	}
	for {
		current := m.MaxDuration.Load()
		if nanos <= current {
			break
		}
		if m.MaxDuration.CompareAndSwap(current, nanos) {
			break
		}
	}
}

// Categories returns a copy of every category status, sorted by name.
func (m *Metrics) Categories() []CategoryStatus {
	m.mu.Lock()
	out := make([]CategoryStatus, 0, len(m.categories))
	for _, cs := range m.categories {
		c := *cs
		if !c.State.Terminal() && !c.StartedAt.IsZero() {
			c.Elapsed = time.Since(c.StartedAt)
		}
		out = append(out, c)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	done := m.CategoriesDone.Load()
	failed := m.CategoriesFailed.Load()
	checked := m.ListingsChecked.Load()
	passed := m.ListingsPassed.Load()

	var avg time.Duration
	if finished := done + failed; finished > 0 {
		avg = time.Duration(m.TotalDuration.Load() / uint64(finished))
	}
	var passRate float64
	if checked > 0 {
		passRate = float64(passed) / float64(checked)
	}

	return MetricsSnapshot{
		CategoriesTotal:  m.CategoriesTotal.Load(),
		CategoriesDone:   done,
		CategoriesFailed: failed,
		PagesFetched:     m.PagesFetched.Load(),
		PagesFailed:      m.PagesFailed.Load(),
		ListingsChecked:  checked,
		ListingsPassed:   passed,
		ListingsRejected: m.ListingsRejected.Load(),
		ListingsSkipped:  m.ListingsSkipped.Load(),
		ListingsFailed:   m.ListingsFailed.Load(),
		PersistErrors:    m.PersistErrors.Load(),
		PassRate:         passRate,
		AverageDuration:  avg,
		MinDuration:      time.Duration(m.MinDuration.Load()),
		MaxDuration:      time.Duration(m.MaxDuration.Load()),
		Uptime:           time.Since(m.StartTime),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	CategoriesTotal  int64         `json:"categories_total"`
	CategoriesDone   int64         `json:"categories_done"`
	CategoriesFailed int64         `json:"categories_failed"`
	PagesFetched     int64         `json:"pages_fetched"`
	PagesFailed      int64         `json:"pages_failed"`
	ListingsChecked  int64         `json:"listings_checked"`
	ListingsPassed   int64         `json:"listings_passed"`
	ListingsRejected int64         `json:"listings_rejected"`
	ListingsSkipped  int64         `json:"listings_skipped"`
	ListingsFailed   int64         `json:"listings_failed"`
	PersistErrors    int64         `json:"persist_errors"`
	PassRate         float64       `json:"pass_rate"`
	AverageDuration  time.Duration `json:"average_category_duration"`
	MinDuration      time.Duration `json:"min_category_duration"`
	MaxDuration      time.Duration `json:"max_category_duration"`
	Uptime           time.Duration `json:"uptime"`
}
