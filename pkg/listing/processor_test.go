package listing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scraper/pkg/api/apitest"
	"market-scraper/pkg/logger"
	"market-scraper/pkg/pager"
)

type memorySink struct {
	mu   sync.Mutex
	urls map[string][]string
	fail map[string]bool
}

func newMemorySink() *memorySink {
	return &memorySink{urls: map[string][]string{}, fail: map[string]bool{}}
}

func (s *memorySink) Append(_ context.Context, category, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[url] {
		return errors.New("disk full")
	}
	s.urls[category] = append(s.urls[category], url)
	return nil
}

func (s *memorySink) sorted(category string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.urls[category]...)
	sort.Strings(out)
	return out
}

func listingState(id int, registered, modified string, count int, price float64) string {
	return detailPage(fmt.Sprintf(
		`{"id":%d,"price":%g,"modified":%q,"localizedUrl":"/fr/d-item/%d","seller":{"registrationDate":%q,"activeListingCount":%d}}`,
		id, price, modified, id, registered, count))
}

func TestProcessAll(t *testing.T) {
	fake := apitest.NewFake()
	fake.Details["/fr/a"] = listingState(1, "Membre depuis 01.02.2015", "05.06.2021", 5, 150)
	fake.Details["/fr/b"] = listingState(2, "Membre depuis 01.02.2016", "05.06.2022", 3, 20)
	fake.Details["/fr/c"] = listingState(3, "Membre depuis 01.02.2010", "05.06.2021", 5, 150)
	fake.Details["/fr/d"] = `<html><body><p>removed</p></body></html>`
	fake.DetailErr["/fr/e"] = errors.New("connection reset")
	// /fr/f has no entry and comes back as not found

	sink := newMemorySink()
	p := NewProcessor(fake, testCriteria(), sink, ProcessorOptions{
		SiteURL:   testSite,
		MaxFanout: 2,
		KeepRaw:   true,
	}, logger.Nop())

	var refs []pager.Reference
	for _, path := range []string{"/fr/a", "/fr/b", "/fr/c", "/fr/d", "/fr/e", "/fr/f"} {
		refs = append(refs, pager.Reference{URL: path, Category: "cars"})
	}

	out := p.ProcessAll(context.Background(), "cars", refs)

	assert.Equal(t, 6, out.Checked)
	assert.Equal(t, 2, out.Passed)
	assert.Equal(t, 1, out.Rejected)
	assert.Equal(t, 2, out.Skipped)
	assert.Equal(t, 1, out.Failed)
	assert.Zero(t, out.PersistErrors)
	assert.Len(t, out.Raw, 2)

	assert.Equal(t, []string{
		"https://www.anibis.ch/fr/d-item/1",
		"https://www.anibis.ch/fr/d-item/2",
	}, sink.sorted("cars"))
}

func TestProcessAll_PersistError(t *testing.T) {
	fake := apitest.NewFake()
	fake.Details["/fr/a"] = listingState(1, "01.02.2015", "05.06.2021", 5, 150)
	fake.Details["/fr/b"] = listingState(2, "01.02.2015", "05.06.2021", 5, 150)

	sink := newMemorySink()
	sink.fail["https://www.anibis.ch/fr/d-item/2"] = true

	p := NewProcessor(fake, testCriteria(), sink, ProcessorOptions{SiteURL: testSite}, logger.Nop())
	out := p.ProcessAll(context.Background(), "cars", []pager.Reference{
		{URL: "/fr/a", Category: "cars"},
		{URL: "/fr/b", Category: "cars"},
	})

	assert.Equal(t, 1, out.Passed)
	assert.Equal(t, 1, out.PersistErrors)
	assert.Nil(t, out.Raw)
	assert.Equal(t, []string{"https://www.anibis.ch/fr/d-item/1"}, sink.sorted("cars"))
}

func TestProcessAll_NoRefs(t *testing.T) {
	p := NewProcessor(apitest.NewFake(), testCriteria(), newMemorySink(), ProcessorOptions{}, logger.Nop())
	out := p.ProcessAll(context.Background(), "empty", nil)
	assert.Equal(t, Outcome{}, out)
}

func TestFetchDetail_Statuses(t *testing.T) {
	fake := apitest.NewFake()
	fake.Details["/ok"] = listingState(9, "01.02.2015", "05.06.2021", 5, 150)
	fake.Details["/broken"] = detailPage(`{"id": nope}`)

	p := NewProcessor(fake, testCriteria(), newMemorySink(), ProcessorOptions{SiteURL: testSite}, logger.Nop())
	ctx := context.Background()

	res := p.FetchDetail(ctx, pager.Reference{URL: "/ok"})
	require.True(t, res.IsOK())
	assert.Equal(t, int64(9), res.Value.ID)

	assert.Equal(t, "skip", p.FetchDetail(ctx, pager.Reference{URL: "/missing"}).Status.String())
	assert.Equal(t, "failed", p.FetchDetail(ctx, pager.Reference{URL: "/broken"}).Status.String())
}
