package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"market-scraper/pkg/logger"
)

// HTTPClient talks to the marketplace API and site over fasthttp.
type HTTPClient struct {
	apiURL  string
	siteURL string
	timeout time.Duration
	client  *fasthttp.Client
	limiter *rate.Limiter
	log     *logger.Logger

	totalRequests  atomic.Uint64
	failedRequests atomic.Uint64
}

// NewHTTPClient validates cfg and builds a client.
func NewHTTPClient(cfg ConnectionConfig, log *logger.Logger) (*HTTPClient, error) {
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	siteURL := strings.TrimRight(strings.TrimSpace(cfg.SiteURL), "/")
	if apiURL == "" || siteURL == "" {
		return nil, errors.New("api and site URLs are required")
	}
	for _, raw := range []string{apiURL, siteURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", raw, err)
		}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &HTTPClient{
		apiURL:  apiURL,
		siteURL: siteURL,
		timeout: cfg.RequestTimeout,
		client:  newFastHTTPClient(cfg),
		limiter: newLimiter(cfg.RequestsPerSecond),
		log:     log.WithField("component", "api_client"),
	}, nil
}

func (c *HTTPClient) Category(ctx context.Context, id int) (*CategoryResponse, error) {
	target := c.apiURL + "/search/categories?cid=" + strconv.Itoa(id)

	body, err := c.get(ctx, target, "application/json", 0)
	if err != nil {
		return nil, err
	}

	var resp CategoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{What: "category response", Err: err}
	}
	if resp.CategoryPath == nil {
		return nil, &DecodeError{What: "category response", Err: errors.New("missing categoryPath")}
	}
	return &resp, nil
}

func (c *HTTPClient) SearchListings(ctx context.Context, code string, page int) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("cun", code)
	q.Set("fcun", code)
	q.Set("pi", strconv.Itoa(page))
	q.Set("pr", "1")
	target := c.apiURL + "/search/listings?" + q.Encode()

	body, err := c.get(ctx, target, "application/json", 0)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{What: "search response", Err: err}
	}
	if resp.Status == fasthttp.StatusNotFound {
		return nil, fmt.Errorf("search %s page %d: %w", code, page, ErrNotFound)
	}
	return &resp, nil
}

// DetailPage fetches a listing page, following up to maxDetailRedirects
// redirects to the canonical localized URL.
func (c *HTTPClient) DetailPage(ctx context.Context, path string) ([]byte, error) {
	return c.get(ctx, c.ResolveSiteURL(path), "text/html,application/xhtml+xml", maxDetailRedirects)
}

// ResolveSiteURL turns a site-relative path into an absolute URL. Absolute
// inputs are returned unchanged.
func (c *HTTPClient) ResolveSiteURL(path string) string {
	return ResolveURL(c.siteURL, path)
}

// ResolveURL joins path onto base unless path already carries a scheme.
func ResolveURL(base, path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(base, "/") + path
}

// Stats returns total and failed request counts.
func (c *HTTPClient) Stats() (total, failed uint64) {
	return c.totalRequests.Load(), c.failedRequests.Load()
}

const maxDetailRedirects = 5

func (c *HTTPClient) get(ctx context.Context, target, accept string, maxRedirects int) ([]byte, error) {
	c.totalRequests.Add(1)
	body, err := c.follow(ctx, target, accept, maxRedirects)
	if err != nil && !errors.Is(err, ErrNotFound) {
		c.failedRequests.Add(1)
		c.log.WithError(err).WithField("url", target).Debug("Request failed")
	}
	return body, err
}

// follow issues the request and chases Location headers while the hop
// budget lasts. A redirect past the budget is returned as a StatusError.
func (c *HTTPClient) follow(ctx context.Context, target, accept string, maxRedirects int) ([]byte, error) {
	for hop := 0; ; hop++ {
		body, location, err := c.do(ctx, target, accept, hop < maxRedirects)
		if err != nil || location == "" {
			return body, err
		}
		next, err := resolveLocation(target, location)
		if err != nil {
			return nil, &DecodeError{What: "redirect location", Err: err}
		}
		c.log.WithFields(map[string]interface{}{
			"from": target,
			"to":   next,
		}).Debug("Following redirect")
		target = next
	}
}

func resolveLocation(from, location string) (string, error) {
	base, err := url.Parse(from)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func isRedirect(status int) bool {
	switch status {
	case fasthttp.StatusMovedPermanently, fasthttp.StatusFound, fasthttp.StatusSeeOther,
		fasthttp.StatusTemporaryRedirect, fasthttp.StatusPermanentRedirect:
		return true
	}
	return false
}

// do performs a single request. When redirect is set and the response is a
// redirect carrying a Location header, the location is returned instead of a
// body.
func (c *HTTPClient) do(ctx context.Context, target, accept string, redirect bool) ([]byte, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "fr-CH,fr;q=0.9,en;q=0.8")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, "", fmt.Errorf("request %s failed: %w", target, err)
	}

	status := resp.StatusCode()
	c.log.WithFields(map[string]interface{}{
		"url":         target,
		"status":      status,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Request completed")

	if redirect && isRedirect(status) {
		if loc := string(resp.Header.Peek(fasthttp.HeaderLocation)); loc != "" {
			return nil, loc, nil
		}
	}

	switch {
	case status == fasthttp.StatusNotFound:
		return nil, "", fmt.Errorf("%s: %w", target, ErrNotFound)
	case status < 200 || status >= 300:
		return nil, "", &StatusError{URL: target, Code: status}
	}

	var body []byte
	if strings.EqualFold(string(resp.Header.Peek(fasthttp.HeaderContentEncoding)), "gzip") {
		b, err := resp.BodyGunzip()
		if err != nil {
			return nil, "", &DecodeError{What: "gzip body", Err: err}
		}
		body = b
	} else {
		// resp is released on return, so the body must be copied out
		body = append([]byte(nil), resp.Body()...)
	}
	return body, "", nil
}
