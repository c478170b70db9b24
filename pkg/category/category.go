// Package category fetches the marketplace category taxonomy and flattens
// it into the leaf categories that listings are searched against.
package category

import (
	"bytes"
	"encoding/json"
	"fmt"

	"market-scraper/pkg/api"
)

// Category is an immutable node of the taxonomy.
type Category struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	ListingCode string     `json:"code"`
	Children    []Category `json:"children,omitempty"`
}

// IsLeaf reports whether c carries the listing code searches run against.
func (c Category) IsLeaf() bool {
	return c.ListingCode != ""
}

// FetchError is returned when a category node cannot be fetched or decoded.
type FetchError struct {
	ID  int
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch category %d: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// fromNode converts an API node, dropping children that are not objects.
func fromNode(n api.CategoryNode) Category {
	c := Category{ID: n.ID, Name: n.Name, ListingCode: n.Code}
	for _, raw := range n.Children {
		child, ok := decodeChild(raw)
		if !ok {
			continue
		}
		c.Children = append(c.Children, child)
	}
	return c
}

// decodeChild returns false for string entries and anything else that is
// not a JSON object.
func decodeChild(raw json.RawMessage) (Category, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Category{}, false
	}
	var n api.CategoryNode
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return Category{}, false
	}
	return fromNode(n), true
}
