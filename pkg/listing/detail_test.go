package listing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scraper/pkg/api"
)

const testSite = "https://www.anibis.ch"

func detailPage(state string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head>
<script>window.dataLayer = [];</script>
<script>window.__INITIAL_STATE__ = {"router":{"path":"/fr/d"},"detail":%s,"error":null};</script>
</head><body><div class="listing-detail"><h1>Item</h1></div></body></html>`, state)
}

func TestParseDetailPage(t *testing.T) {
	body := detailPage(`{"id":42,"price":150.5,"modified":"05.06.2021 14:22",
		"localizedUrl":"/fr/d-vehicules-voitures/42",
		"seller":{"registrationDate":"Membre depuis 01.02.2015","activeListingCount":7}}`)

	d, err := ParseDetailPage([]byte(body), testSite)
	require.NoError(t, err)

	assert.Equal(t, int64(42), d.ID)
	require.NotNil(t, d.Price)
	assert.Equal(t, 150.5, *d.Price)
	require.NotNil(t, d.SellerActiveListings)
	assert.Equal(t, 7, *d.SellerActiveListings)
	assert.Equal(t, time.Date(2015, 2, 1, 0, 0, 0, 0, time.UTC), d.SellerRegistered)
	assert.Equal(t, time.Date(2021, 6, 5, 0, 0, 0, 0, time.UTC), d.Modified)
	assert.Equal(t, "https://www.anibis.ch/fr/d-vehicules-voitures/42", d.CanonicalURL)
	assert.True(t, d.Valid())
	assert.Contains(t, string(d.Raw), `"id":42`)
}

func TestParseDetailPage_MissingMarker(t *testing.T) {
	body := `<html><body><p>Cette annonce n'existe plus</p>
<script>{"detail":{"id":1},"error":null}</script></body></html>`

	_, err := ParseDetailPage([]byte(body), testSite)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestParseDetailPage_MissingStateScript(t *testing.T) {
	body := `<html><body><div class="listing-detail"></div><script>var x = 1;</script></body></html>`

	_, err := ParseDetailPage([]byte(body), testSite)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestParseDetailPage_BrokenState(t *testing.T) {
	_, err := ParseDetailPage([]byte(detailPage(`{"id": oops}`)), testSite)
	require.Error(t, err)
	assert.Equal(t, api.KindDecode, api.Classify(err))
}

func TestParseDetailPage_NullState(t *testing.T) {
	_, err := ParseDetailPage([]byte(detailPage(`null`)), testSite)
	assert.Error(t, err)
}

func TestParseDetailPage_MissingRegistrationUsesSentinel(t *testing.T) {
	body := detailPage(`{"id":1,"price":10,"modified":"01.01.2020","localizedUrl":"https://x/1",
		"seller":{"activeListingCount":3}}`)

	d, err := ParseDetailPage([]byte(body), testSite)
	require.NoError(t, err)
	assert.True(t, d.SellerRegistered.IsZero())
	assert.False(t, d.Valid())
}

func TestExtractState_WithoutErrorTrailer(t *testing.T) {
	raw, err := extractState(`window.s = {"detail":{"id":3,"seller":{"error":"nested"}}};`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"seller":{"error":"nested"}}`, string(raw))
}
