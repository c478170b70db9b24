package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"market-scraper/pkg/api"
	"market-scraper/pkg/listing"
	"market-scraper/pkg/pager"
	"market-scraper/pkg/storage"
)

type Config struct {
	MaxConcurrentTasks int       `mapstructure:"max_concurrent_tasks"`
	SellerDate         []string  `mapstructure:"seller_date"`
	AdsDate            []string  `mapstructure:"ads_date"`
	AdsCount           int       `mapstructure:"ads_count"`
	Price              []float64 `mapstructure:"price"`
	CHF                float64   `mapstructure:"chf"`
	SaveAds            bool      `mapstructure:"save_ads"`
	Debug              bool      `mapstructure:"debug"`

	APIURL            string        `mapstructure:"api_url"`
	SiteURL           string        `mapstructure:"site_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	RootCategoryID    int           `mapstructure:"root_category_id"`
	PageSize          int           `mapstructure:"page_size"`
	PageDiscovery     string        `mapstructure:"page_discovery"`
	MaxFanout         int           `mapstructure:"max_fanout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`

	Paths       PathsConfig `mapstructure:"paths"`
	MergeMode   string      `mapstructure:"merge_mode"`
	OutputFile  string      `mapstructure:"output_file"`
	PostgresDSN string      `mapstructure:"postgres_dsn"`
	StatusAddr  string      `mapstructure:"status_addr"`
	LogLevel    string      `mapstructure:"log_level"`
}

type PathsConfig struct {
	JSONDir   string `mapstructure:"json_dir"`
	OutputDir string `mapstructure:"output_dir"`
	LogDir    string `mapstructure:"log_dir"`
}

type Manager interface {
	Load(configPath string) (*Config, error)
}

// Criteria builds the listing filter. Dates use the dd.mm.yyyy form.
func (c *Config) Criteria() (listing.Criteria, error) {
	sellers, err := parseRange("seller_date", c.SellerDate)
	if err != nil {
		return listing.Criteria{}, err
	}
	ads, err := parseRange("ads_date", c.AdsDate)
	if err != nil {
		return listing.Criteria{}, err
	}
	if len(c.Price) != 2 {
		return listing.Criteria{}, fmt.Errorf("price needs two values, got %d", len(c.Price))
	}

	return listing.Criteria{
		SellerDates:       sellers,
		ListingDates:      ads,
		MinActiveListings: c.AdsCount,
		Price:             listing.PriceRange{Min: c.Price[0], Max: c.Price[1]},
		Rate:              c.CHF,
	}, nil
}

func parseRange(key string, values []string) (listing.DateRange, error) {
	if len(values) != 2 {
		return listing.DateRange{}, fmt.Errorf("%s needs two dates, got %d", key, len(values))
	}
	from, err := time.Parse(listing.DateLayout, values[0])
	if err != nil {
		return listing.DateRange{}, fmt.Errorf("%s start: %w", key, err)
	}
	to, err := time.Parse(listing.DateLayout, values[1])
	if err != nil {
		return listing.DateRange{}, fmt.Errorf("%s end: %w", key, err)
	}
	if to.Before(from) {
		return listing.DateRange{}, fmt.Errorf("%s ends before it starts", key)
	}
	return listing.DateRange{From: from, To: to}, nil
}

func (c *Config) Connection() api.ConnectionConfig {
	cc := api.DefaultConnectionConfig()
	cc.APIURL = c.APIURL
	cc.SiteURL = c.SiteURL
	if c.UserAgent != "" {
		cc.UserAgent = c.UserAgent
	}
	if c.RequestTimeout > 0 {
		cc.RequestTimeout = c.RequestTimeout
	}
	cc.RequestsPerSecond = c.RequestsPerSecond
	return cc
}

func (c *Config) Strategy() pager.Strategy {
	return pager.Strategy(c.PageDiscovery)
}

func (c *Config) Merge() storage.MergeMode {
	m, err := storage.ParseMergeMode(c.MergeMode)
	if err != nil {
		return storage.MergeAppend
	}
	return m
}

// OutputPath is where the merged URL list is written.
func (c *Config) OutputPath() string {
	return filepath.Join(c.Paths.OutputDir, c.OutputFile)
}

// EnsureDirs creates the category, output and log directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.JSONDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
