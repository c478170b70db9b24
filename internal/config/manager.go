package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"market-scraper/pkg/api"
	"market-scraper/pkg/pager"
	"market-scraper/pkg/storage"
)

const envPrefix = "MARKET_SCRAPER"

type manager struct {
	mu     sync.Mutex
	config *Config
	viper  *viper.Viper
}

func NewManager() Manager {
	return &manager{
		viper: viper.New(),
	}
}

func (m *manager) Load(configPath string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// a missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	m.setupViper(configPath)

	if err := m.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return m.decode()
}

// must be called with lock held
func (m *manager) decode() (*Config, error) {
	var config Config
	if err := m.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := m.validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m.config = &config
	return &config, nil
}

func (m *manager) setupViper(configPath string) {
	m.viper.SetConfigFile(configPath)

	m.viper.SetEnvPrefix(envPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	setDefaults(m.viper)
}

func setDefaults(v *viper.Viper) {
	conn := api.DefaultConnectionConfig()

	v.SetDefault("max_concurrent_tasks", 5)
	v.SetDefault("ads_count", 0)
	v.SetDefault("save_ads", false)
	v.SetDefault("debug", false)

	v.SetDefault("api_url", conn.APIURL)
	v.SetDefault("site_url", conn.SiteURL)
	v.SetDefault("user_agent", conn.UserAgent)
	v.SetDefault("root_category_id", 1)
	v.SetDefault("page_size", pager.DefaultPageSize)
	v.SetDefault("page_discovery", string(pager.StrategyCount))
	v.SetDefault("max_fanout", 0)
	v.SetDefault("request_timeout", conn.RequestTimeout)
	v.SetDefault("requests_per_second", 0)

	v.SetDefault("paths.json_dir", "json/anibis")
	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("paths.log_dir", "logs")
	v.SetDefault("merge_mode", string(storage.MergeAppend))
	v.SetDefault("output_file", "ads.txt")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("status_addr", "")
	v.SetDefault("log_level", "info")
}

func (m *manager) validateConfig(config *Config) error {
	var errs []error

	if config.MaxConcurrentTasks <= 0 {
		errs = append(errs, fmt.Errorf("max_concurrent_tasks must be positive"))
	}
	if config.AdsCount < 0 {
		errs = append(errs, fmt.Errorf("ads_count cannot be negative"))
	}
	if config.CHF <= 0 {
		errs = append(errs, fmt.Errorf("CHF rate must be positive"))
	}
	if len(config.Price) == 2 && config.Price[0] > config.Price[1] {
		errs = append(errs, fmt.Errorf("price range is inverted: %v", config.Price))
	}
	if _, err := config.Criteria(); err != nil {
		errs = append(errs, err)
	}

	if config.APIURL == "" || config.SiteURL == "" {
		errs = append(errs, fmt.Errorf("api_url and site_url cannot be empty"))
	}
	if config.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive"))
	}
	switch pager.Strategy(config.PageDiscovery) {
	case pager.StrategyCount, pager.StrategyProbe:
	default:
		errs = append(errs, fmt.Errorf("page_discovery must be %q or %q, got %q",
			pager.StrategyCount, pager.StrategyProbe, config.PageDiscovery))
	}
	if config.MaxFanout < 0 {
		errs = append(errs, fmt.Errorf("max_fanout cannot be negative"))
	}
	if _, err := storage.ParseMergeMode(config.MergeMode); err != nil {
		errs = append(errs, err)
	}
	if config.Paths.JSONDir == "" || config.Paths.OutputDir == "" {
		errs = append(errs, fmt.Errorf("paths.json_dir and paths.output_dir cannot be empty"))
	}
	if config.OutputFile == "" {
		errs = append(errs, fmt.Errorf("output_file cannot be empty"))
	}

	return errors.Join(errs...)
}
