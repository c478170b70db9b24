// Package pager discovers how many result pages a leaf category has and
// fetches them into listing references.
package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"market-scraper/pkg/api"
	"market-scraper/pkg/gate"
	"market-scraper/pkg/logger"
)

// DefaultPageSize is the fixed number of listings per search page served by
// the marketplace.
const DefaultPageSize = 20

// Strategy selects how the end of a category's results is found.
type Strategy string

const (
	// StrategyCount reads totalItems upfront and derives the page count.
	StrategyCount Strategy = "count"
	// StrategyProbe fetches pages one by one until the service answers 404
	// or a page comes back without listings.
	StrategyProbe Strategy = "probe"
)

const (
	maxProbePages          = 5000
	maxConsecutiveFailures = 3
)

// Reference points at a listing detail page found while paging.
type Reference struct {
	URL      string `json:"url"`
	Category string `json:"category"`
}

// Enumeration is everything one category's paging produced.
type Enumeration struct {
	Refs        []Reference
	Pages       int
	FailedPages int
}

type Options struct {
	PageSize int
	Strategy Strategy
	// MaxFanout bounds concurrent page fetches; 0 or less means unbounded.
	MaxFanout int
}

type Enumerator struct {
	client api.Client
	opts   Options
	log    *logger.Logger
}

func NewEnumerator(client api.Client, opts Options, log *logger.Logger) *Enumerator {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyCount
	}
	return &Enumerator{
		client: client,
		opts:   opts,
		log:    log.WithField("component", "pager"),
	}
}

// PageCount returns ceil(total/pageSize). Zero items still yields one page
// to probe.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// CountPages reads the total item count of code and converts it to pages.
func (e *Enumerator) CountPages(ctx context.Context, code string) (int, error) {
	_, pages, err := e.firstPage(ctx, code)
	return pages, err
}

// firstPage fetches page 1 and derives the page count from it. A 404 yields
// one page and a nil response.
func (e *Enumerator) firstPage(ctx context.Context, code string) (*api.SearchResponse, int, error) {
	resp, err := e.client.SearchListings(ctx, code, 1)
	if errors.Is(err, api.ErrNotFound) {
		return nil, 1, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("count pages for %s: %w", code, err)
	}
	return resp, PageCount(resp.PagingInfo.TotalItems, e.opts.PageSize), nil
}

// FetchAllPages returns the references of every page of code. A failed page
// contributes nothing; an error is returned only when the page count
// itself cannot be read. Page 1 is reused from the count request.
func (e *Enumerator) FetchAllPages(ctx context.Context, code, category string) (Enumeration, error) {
	if e.opts.Strategy == StrategyProbe {
		return e.probe(ctx, code, category), nil
	}

	first, pages, err := e.firstPage(ctx, code)
	if err != nil {
		return Enumeration{}, err
	}

	perPage := make([][]Reference, pages)
	perPage[0] = toReferences(first, category)
	var failed int
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(gate.FanoutLimit(e.opts.MaxFanout))
	for page := 2; page <= pages; page++ {
		page := page
		g.Go(func() error {
			refs, err := e.fetchPage(ctx, code, category, page)
			if err != nil && !errors.Is(err, api.ErrNotFound) {
				mu.Lock()
				failed++
				mu.Unlock()
				e.log.WithError(err).WithFields(map[string]interface{}{
					"category": category,
					"page":     page,
				}).Warn("Page fetch failed")
				return nil
			}
			perPage[page-1] = refs
			return nil
		})
	}
	_ = g.Wait()

	return Enumeration{Refs: flatten(perPage), Pages: pages, FailedPages: failed}, nil
}

func (e *Enumerator) probe(ctx context.Context, code, category string) Enumeration {
	var out Enumeration
	consecutive := 0

	for page := 1; page <= maxProbePages; page++ {
		if ctx.Err() != nil {
			break
		}
		refs, err := e.fetchPage(ctx, code, category, page)
		if errors.Is(err, api.ErrNotFound) {
			break
		}
		out.Pages++
		if err != nil {
			out.FailedPages++
			consecutive++
			e.log.WithError(err).WithFields(map[string]interface{}{
				"category": category,
				"page":     page,
			}).Warn("Page probe failed")
			if consecutive >= maxConsecutiveFailures {
				break
			}
			continue
		}
		consecutive = 0
		if len(refs) == 0 {
			break
		}
		out.Refs = append(out.Refs, refs...)
	}
	return out
}

func (e *Enumerator) fetchPage(ctx context.Context, code, category string, page int) ([]Reference, error) {
	resp, err := e.client.SearchListings(ctx, code, page)
	if err != nil {
		return nil, err
	}
	return toReferences(resp, category), nil
}

func toReferences(resp *api.SearchResponse, category string) []Reference {
	if resp == nil {
		return nil
	}
	refs := make([]Reference, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		if l.URL == "" {
			continue
		}
		refs = append(refs, Reference{URL: l.URL, Category: category})
	}
	return refs
}

func flatten(pages [][]Reference) []Reference {
	n := 0
	for _, p := range pages {
		n += len(p)
	}
	out := make([]Reference, 0, n)
	for _, p := range pages {
		out = append(out, p...)
	}
	return out
}
