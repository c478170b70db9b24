// Package listing turns listing references into filtered, persisted
// canonical URLs.
package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"market-scraper/pkg/api"
)

const (
	// detailBlockSelector marks a live listing page; removed listings render
	// without it.
	detailBlockSelector = "div.listing-detail"
	stateAnchor         = `"detail":`
	stateTrailer        = `,"error":`
)

// ErrUnavailable means the page has no listing content block or state
// script, which is how removed listings render.
var ErrUnavailable = errors.New("listing unavailable")

// Detail holds the fields the filter needs. Zero times and nil pointers
// mean the field was absent from the page.
type Detail struct {
	ID                   int64
	SellerRegistered     time.Time
	SellerActiveListings *int
	Modified             time.Time
	Price                *float64
	CanonicalURL         string
	Raw                  json.RawMessage
}

// Valid reports whether every required field is present.
func (d Detail) Valid() bool {
	return !d.SellerRegistered.IsZero() &&
		d.SellerActiveListings != nil &&
		!d.Modified.IsZero() &&
		d.Price != nil &&
		d.CanonicalURL != ""
}

type detailPayload struct {
	ID           int64    `json:"id"`
	Price        *float64 `json:"price"`
	Modified     string   `json:"modified"`
	LocalizedURL string   `json:"localizedUrl"`
	Seller       *struct {
		RegistrationDate   *string `json:"registrationDate"`
		ActiveListingCount *int    `json:"activeListingCount"`
	} `json:"seller"`
}

// ParseDetailPage extracts a Detail from a listing page. siteURL resolves a
// relative localized URL. ErrUnavailable is returned when the page does not
// carry a listing; an *api.DecodeError when the state cannot be decoded.
func ParseDetailPage(body []byte, siteURL string) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Detail{}, &api.DecodeError{What: "detail html", Err: err}
	}
	if doc.Find(detailBlockSelector).Length() == 0 {
		return Detail{}, ErrUnavailable
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, stateAnchor) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return Detail{}, ErrUnavailable
	}

	raw, err := extractState(script)
	if err != nil {
		return Detail{}, &api.DecodeError{What: "detail state", Err: err}
	}

	var p detailPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Detail{}, &api.DecodeError{What: "detail state", Err: err}
	}
	return p.toDetail(raw, siteURL), nil
}

// extractState cuts the value of the "detail" key out of the state script,
// dropping the "error" sibling that follows it.
func extractState(script string) (json.RawMessage, error) {
	idx := strings.Index(script, stateAnchor)
	if idx < 0 {
		return nil, errors.New("state anchor not found")
	}
	rest := script[idx+len(stateAnchor):]
	if end := strings.LastIndex(rest, stateTrailer); end >= 0 {
		rest = rest[:end]
	}

	// the decoder stops after one value, which tolerates any closing braces
	// or statements left behind when the trailer is absent
	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(rest)).Decode(&raw); err != nil {
		return nil, err
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, errors.New("detail state is null")
	}
	return raw, nil
}

func (p detailPayload) toDetail(raw json.RawMessage, siteURL string) Detail {
	d := Detail{
		ID:       p.ID,
		Price:    p.Price,
		Modified: parseLooseDate(p.Modified),
		Raw:      raw,
	}
	if p.LocalizedURL != "" {
		d.CanonicalURL = api.ResolveURL(siteURL, p.LocalizedURL)
	}

	registration := SentinelDate
	if p.Seller != nil {
		if p.Seller.RegistrationDate != nil {
			registration = NormalizeDate(*p.Seller.RegistrationDate)
		}
		d.SellerActiveListings = p.Seller.ActiveListingCount
	}
	d.SellerRegistered, _ = ParseDate(registration)
	return d
}
