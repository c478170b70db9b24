package api

import (
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// ConnectionConfig holds transport settings for the marketplace client.
type ConnectionConfig struct {
	APIURL            string        `json:"api_url"`
	SiteURL           string        `json:"site_url"`
	UserAgent         string        `json:"user_agent"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	MaxConnsPerHost   int           `json:"max_conns_per_host"`
	IdleConnTimeout   time.Duration `json:"idle_conn_timeout"`
	RequestsPerSecond float64       `json:"requests_per_second"`
}

// DefaultConnectionConfig returns settings matching the public anibis endpoints.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		APIURL:          "https://api.anibis.ch/v4/fr",
		SiteURL:         "https://www.anibis.ch",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		RequestTimeout:  30 * time.Second,
		MaxConnsPerHost: 512,
		IdleConnTimeout: 90 * time.Second,
	}
}

func newFastHTTPClient(cfg ConnectionConfig) *fasthttp.Client {
	return &fasthttp.Client{
		Name:                cfg.UserAgent,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		MaxIdleConnDuration: cfg.IdleConnTimeout,
		ReadTimeout:         cfg.RequestTimeout,
		WriteTimeout:        cfg.RequestTimeout,
		MaxConnWaitTimeout:  cfg.RequestTimeout,
	}
}

// newLimiter returns nil when pacing is disabled.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
