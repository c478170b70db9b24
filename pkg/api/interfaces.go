package api

import (
	"context"
	"encoding/json"
)

// CategoryNode is one node of the category API response. Children are left
// raw because the service mixes objects and plain strings in that array.
type CategoryNode struct {
	ID       int               `json:"id"`
	Name     string            `json:"name"`
	Code     string            `json:"code"`
	Children []json.RawMessage `json:"children"`
}

type CategoryResponse struct {
	CategoryPath *CategoryNode `json:"categoryPath"`
}

// ListingSummary is one row of a listing search page.
type ListingSummary struct {
	ID    int64   `json:"id"`
	URL   string  `json:"url"`
	Title string  `json:"title,omitempty"`
	Price float64 `json:"price,omitempty"`
}

type PagingInfo struct {
	TotalItems int `json:"totalItems"`
}

type SearchResponse struct {
	Listings   []ListingSummary `json:"listings"`
	PagingInfo PagingInfo       `json:"pagingInfo"`
	Status     int              `json:"status,omitempty"`
}

// Client is the remote marketplace surface the crawl pipeline depends on.
type Client interface {
	// Category fetches one category node with its direct children.
	Category(ctx context.Context, id int) (*CategoryResponse, error)

	// SearchListings fetches one result page for a leaf category code.
	// A page past the end of the data returns ErrNotFound.
	SearchListings(ctx context.Context, code string, page int) (*SearchResponse, error)

	// DetailPage fetches the HTML of a listing detail page. path may be
	// absolute or relative to the site root.
	DetailPage(ctx context.Context, path string) ([]byte, error)
}
