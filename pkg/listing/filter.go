package listing

import (
	"fmt"
	"time"
)

// DateRange is inclusive at both ends.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

func (r DateRange) String() string {
	return r.From.Format(DateLayout) + " - " + r.To.Format(DateLayout)
}

// PriceRange is inclusive at both ends and expressed in the target currency.
type PriceRange struct {
	Min float64
	Max float64
}

func (r PriceRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Criteria is built once per crawl and shared read-only by every listing.
type Criteria struct {
	SellerDates       DateRange
	ListingDates      DateRange
	MinActiveListings int
	Price             PriceRange
	// Rate converts the listing price into the target currency.
	Rate float64
}

// Evaluate reports whether d passes every criterion.
func Evaluate(d Detail, c Criteria) bool {
	return Reject(d, c) == ""
}

// Reject returns why d fails c, or "" when it passes. Checks run in a
// fixed order and stop at the first failure.
func Reject(d Detail, c Criteria) string {
	if d.SellerRegistered.IsZero() {
		return "seller registration date missing"
	}
	if !c.SellerDates.Contains(d.SellerRegistered) {
		return fmt.Sprintf("seller registered %s outside %s", d.SellerRegistered.Format(DateLayout), c.SellerDates)
	}
	if d.Modified.IsZero() {
		return "modified date missing"
	}
	if !c.ListingDates.Contains(d.Modified) {
		return fmt.Sprintf("modified %s outside %s", d.Modified.Format(DateLayout), c.ListingDates)
	}
	if d.SellerActiveListings == nil {
		return "seller listing count missing"
	}
	if *d.SellerActiveListings < c.MinActiveListings {
		return fmt.Sprintf("seller has %d listings, need %d", *d.SellerActiveListings, c.MinActiveListings)
	}
	if d.Price == nil {
		return "price missing"
	}
	if converted := *d.Price * c.Rate; !c.Price.Contains(converted) {
		return fmt.Sprintf("price %.2f outside %.2f - %.2f", converted, c.Price.Min, c.Price.Max)
	}
	return ""
}
