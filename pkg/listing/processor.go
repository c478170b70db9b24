package listing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"market-scraper/pkg/api"
	"market-scraper/pkg/gate"
	"market-scraper/pkg/logger"
	"market-scraper/pkg/pager"
)

// Sink receives the canonical URL of every listing that passed the filter.
// Implementations must accept concurrent calls for the same category.
type Sink interface {
	Append(ctx context.Context, category, url string) error
}

type ProcessorOptions struct {
	SiteURL string
	// MaxFanout bounds concurrent detail fetches within one category;
	// 0 or less means unbounded.
	MaxFanout int
	// KeepRaw collects the state payload of passing listings.
	KeepRaw bool
}

// Outcome counts what happened to one category's references.
type Outcome struct {
	Checked       int
	Passed        int
	Rejected      int
	Skipped       int
	Failed        int
	PersistErrors int
	Raw           []json.RawMessage
}

type Processor struct {
	client   api.Client
	criteria Criteria
	sink     Sink
	opts     ProcessorOptions
	log      *logger.Logger
}

func NewProcessor(client api.Client, criteria Criteria, sink Sink, opts ProcessorOptions, log *logger.Logger) *Processor {
	return &Processor{
		client:   client,
		criteria: criteria,
		sink:     sink,
		opts:     opts,
		log:      log.WithField("component", "listing_processor"),
	}
}

// FetchDetail fetches and parses one listing page. Removed listings come
// back as StatusSkip; transport and decode problems as StatusFailed.
func (p *Processor) FetchDetail(ctx context.Context, ref pager.Reference) api.Result[Detail] {
	body, err := p.client.DetailPage(ctx, ref.URL)
	if errors.Is(err, api.ErrNotFound) {
		return api.Skip[Detail](err)
	}
	if err != nil {
		return api.Failed[Detail](err)
	}

	d, err := ParseDetailPage(body, p.opts.SiteURL)
	if errors.Is(err, ErrUnavailable) {
		return api.Skip[Detail](err)
	}
	if err != nil {
		return api.Failed[Detail](err)
	}
	return api.OK(d)
}

// ProcessAll handles every reference of one category concurrently and
// returns the tally. Per-listing failures are logged and counted, never
// returned.
func (p *Processor) ProcessAll(ctx context.Context, category string, refs []pager.Reference) Outcome {
	var (
		checked, passed, rejected, skipped, failed, persistErrs atomic.Int64
		rawMu                                                   sync.Mutex
		raw                                                     []json.RawMessage
	)
	log := p.log.WithField("category", category)

	var g errgroup.Group
	g.SetLimit(gate.FanoutLimit(p.opts.MaxFanout))
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					log.WithFields(map[string]interface{}{"url": ref.URL, "panic": r}).Error("Listing panicked")
				}
			}()
			checked.Add(1)
			res := p.FetchDetail(ctx, ref)

			switch res.Status {
			case api.StatusSkip:
				skipped.Add(1)
				log.WithField("url", ref.URL).Debug("Listing unavailable")
				return nil
			case api.StatusFailed:
				failed.Add(1)
				log.WithError(res.Err).WithFields(map[string]interface{}{
					"url":  ref.URL,
					"kind": string(api.Classify(res.Err)),
				}).Warn("Listing fetch failed")
				return nil
			}

			d := res.Value
			if reason := p.check(d); reason != "" {
				rejected.Add(1)
				log.WithFields(map[string]interface{}{"url": ref.URL, "reason": reason}).Debug("Listing rejected")
				return nil
			}

			if err := p.sink.Append(ctx, category, d.CanonicalURL); err != nil {
				persistErrs.Add(1)
				log.WithError(err).WithField("url", d.CanonicalURL).Error("Failed to persist listing")
				return nil
			}
			passed.Add(1)
			log.WithField("url", d.CanonicalURL).Debug("Listing saved")

			if p.opts.KeepRaw {
				rawMu.Lock()
				raw = append(raw, d.Raw)
				rawMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return Outcome{
		Checked:       int(checked.Load()),
		Passed:        int(passed.Load()),
		Rejected:      int(rejected.Load()),
		Skipped:       int(skipped.Load()),
		Failed:        int(failed.Load()),
		PersistErrors: int(persistErrs.Load()),
		Raw:           raw,
	}
}

func (p *Processor) check(d Detail) string {
	if d.CanonicalURL == "" {
		return "canonical url missing"
	}
	return Reject(d, p.criteria)
}
