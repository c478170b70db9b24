// Package apitest provides an in-memory api.Client for tests.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"market-scraper/pkg/api"
)

// Fake serves canned JSON and HTML bodies. Missing entries behave like a
// 404 from the real service.
type Fake struct {
	mu sync.Mutex

	Categories  map[int]string
	CategoryErr map[int]error

	// Pages is keyed by listing code, then page index.
	Pages   map[string]map[int]string
	PageErr map[string]map[int]error

	Details   map[string]string
	DetailErr map[string]error

	calls map[string]int
}

func NewFake() *Fake {
	return &Fake{
		Categories:  map[int]string{},
		CategoryErr: map[int]error{},
		Pages:       map[string]map[int]string{},
		PageErr:     map[string]map[int]error{},
		Details:     map[string]string{},
		DetailErr:   map[string]error{},
		calls:       map[string]int{},
	}
}

func (f *Fake) Category(_ context.Context, id int) (*api.CategoryResponse, error) {
	f.record(fmt.Sprintf("category:%d", id))

	f.mu.Lock()
	body, ok := f.Categories[id]
	err := f.CategoryErr[id]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, api.ErrNotFound
	}
	var resp api.CategoryResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, &api.DecodeError{What: "category response", Err: err}
	}
	return &resp, nil
}

func (f *Fake) SearchListings(_ context.Context, code string, page int) (*api.SearchResponse, error) {
	f.record(fmt.Sprintf("search:%s:%d", code, page))

	f.mu.Lock()
	body, ok := f.Pages[code][page]
	err := f.PageErr[code][page]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, api.ErrNotFound
	}
	var resp api.SearchResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, &api.DecodeError{What: "search response", Err: err}
	}
	if resp.Status == 404 {
		return nil, api.ErrNotFound
	}
	return &resp, nil
}

func (f *Fake) DetailPage(_ context.Context, path string) ([]byte, error) {
	f.record("detail:" + path)

	f.mu.Lock()
	body, ok := f.Details[path]
	err := f.DetailErr[path]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, api.ErrNotFound
	}
	return []byte(body), nil
}

// SetPage registers the body for one search page.
func (f *Fake) SetPage(code string, page int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Pages[code] == nil {
		f.Pages[code] = map[int]string{}
	}
	f.Pages[code][page] = body
}

// SetPageErr makes one search page fail with err.
func (f *Fake) SetPageErr(code string, page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PageErr[code] == nil {
		f.PageErr[code] = map[int]error{}
	}
	f.PageErr[code][page] = err
}

// Calls returns how many times key was requested, e.g. "search:cars:2".
func (f *Fake) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *Fake) record(key string) {
	f.mu.Lock()
	f.calls[key]++
	f.mu.Unlock()
}
