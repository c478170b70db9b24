package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-scraper/pkg/pager"
	"market-scraper/pkg/storage"
)

const sampleConfig = `
max_concurrent_tasks: 3
seller_date: ["01.01.2013", "31.12.2023"]
ads_date: ["01.01.2020", "31.12.2023"]
ads_count: 2
price: [1000, 50000]
CHF: 101.5
save_ads: true
debug: false
page_discovery: probe
max_fanout: 16
request_timeout: 10s
paths:
  json_dir: data/json
  output_dir: data/output
  log_dir: data/logs
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestManager_Load(t *testing.T) {
	cfg, err := NewManager().Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxConcurrentTasks)
	assert.Equal(t, 101.5, cfg.CHF)
	assert.True(t, cfg.SaveAds)
	assert.Equal(t, pager.StrategyProbe, cfg.Strategy())
	assert.Equal(t, 16, cfg.MaxFanout)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "data/json", cfg.Paths.JSONDir)

	// defaults
	assert.Equal(t, "https://api.anibis.ch/v4/fr", cfg.APIURL)
	assert.Equal(t, 1, cfg.RootCategoryID)
	assert.Equal(t, pager.DefaultPageSize, cfg.PageSize)
	assert.Equal(t, storage.MergeAppend, cfg.Merge())
	assert.Equal(t, filepath.Join("data/output", "ads.txt"), cfg.OutputPath())
}

func TestConfig_Criteria(t *testing.T) {
	cfg, err := NewManager().Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	c, err := cfg.Criteria()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC), c.SellerDates.From)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), c.ListingDates.To)
	assert.Equal(t, 2, c.MinActiveListings)
	assert.Equal(t, 1000.0, c.Price.Min)
	assert.Equal(t, 50000.0, c.Price.Max)
	assert.Equal(t, 101.5, c.Rate)
}

func TestManager_EnvOverride(t *testing.T) {
	t.Setenv("MARKET_SCRAPER_MAX_CONCURRENT_TASKS", "9")
	t.Setenv("MARKET_SCRAPER_MERGE_MODE", "truncate")

	cfg, err := NewManager().Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.MaxConcurrentTasks)
	assert.Equal(t, storage.MergeTruncate, cfg.Merge())
}

func TestManager_Validation(t *testing.T) {
	cases := map[string][2]string{
		"bad date":        {`seller_date: ["01.01.2013"`, `seller_date: ["2013-01-01"`},
		"inverted dates":  {`ads_date: ["01.01.2020", "31.12.2023"]`, `ads_date: ["31.12.2023", "01.01.2020"]`},
		"one price":       {`price: [1000, 50000]`, `price: [1000]`},
		"inverted price":  {`price: [1000, 50000]`, `price: [50000, 1000]`},
		"zero workers":    {`max_concurrent_tasks: 3`, `max_concurrent_tasks: 0`},
		"unknown paging":  {`page_discovery: probe`, `page_discovery: guess`},
		"negative fanout": {`max_fanout: 16`, `max_fanout: -1`},
		"zero rate":       {`CHF: 101.5`, `CHF: 0`},
	}
	for name, repl := range cases {
		t.Run(name, func(t *testing.T) {
			body := strings.Replace(sampleConfig, repl[0], repl[1], 1)
			require.NotEqual(t, sampleConfig, body)
			_, err := NewManager().Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestManager_UnknownMergeMode(t *testing.T) {
	_, err := NewManager().Load(writeConfig(t, sampleConfig+"merge_mode: overwrite\n"))
	assert.Error(t, err)
}

func TestManager_MissingFile(t *testing.T) {
	_, err := NewManager().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_EnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{Paths: PathsConfig{
		JSONDir:   filepath.Join(root, "json", "anibis"),
		OutputDir: filepath.Join(root, "output"),
		LogDir:    filepath.Join(root, "logs"),
	}}
	require.NoError(t, cfg.EnsureDirs())
	require.NoError(t, cfg.EnsureDirs())

	for _, dir := range []string{cfg.Paths.JSONDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
