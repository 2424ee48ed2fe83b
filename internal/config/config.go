package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Provider struct {
	Name                  string `json:"name"`
	BaseURL               string `json:"base_url"`
	TimeoutSec            int    `json:"timeout_sec"`
	DailyRange            string `json:"daily_range"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	Burst                 int    `json:"burst"`
}

type Cache struct {
	Backend        string         `json:"backend"`
	RedisURL       string         `json:"redis_url"`
	KeyPrefix      string         `json:"key_prefix"`
	BoltPath       string         `json:"bolt_path"`
	MaxItems       int            `json:"max_items"`
	RetainStaleSec int            `json:"retain_stale_sec"`
	DefaultTTLSec  int            `json:"default_ttl_sec"`
	TTLSec         map[string]int `json:"ttl_sec"`
}

type Refresh struct {
	EverySec         int `json:"every_sec"`
	MarginSec        int `json:"margin_sec"`
	HotWindowSec     int `json:"hot_window_sec"`
	BackoffBaseSec   int `json:"backoff_base_sec"`
	BackoffCapSec    int `json:"backoff_cap_sec"`
	ErrorLogEverySec int `json:"error_log_every_sec"`
	Concurrency      int `json:"concurrency"`
}

type Warm struct {
	Symbols []string `json:"symbols"`
	Kinds   []string `json:"kinds"`
}

type Config struct {
	Provider Provider `json:"provider"`
	Cache    Cache    `json:"cache"`
	Refresh  Refresh  `json:"refresh"`
	Warm     Warm     `json:"warm"`
	LogLevel string   `json:"log_level"`
}

func Default() Config {
	return Config{
		Provider: Provider{
			Name:                 "yahoo",
			BaseURL:              "https://query1.finance.yahoo.com",
			TimeoutSec:           30,
			DailyRange:           "3mo",
			MaxRequestsPerMinute: 60,
			Burst:                5,
		},
		Cache: Cache{
			Backend:        "memory",
			RedisURL:       "redis://127.0.0.1:6379/1",
			KeyPrefix:      "mapletrade",
			BoltPath:       "mapletrade.db",
			MaxItems:       10000,
			RetainStaleSec: 86400,
			DefaultTTLSec:  3600,
			TTLSec: map[string]int{
				"quote":   300,
				"daily":   3600,
				"profile": 14400,
			},
		},
		Refresh: Refresh{
			EverySec:         30,
			MarginSec:        60,
			HotWindowSec:     900,
			BackoffBaseSec:   1,
			BackoffCapSec:    32,
			ErrorLogEverySec: 60,
			Concurrency:      4,
		},
		Warm: Warm{
			Symbols: []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "JPM", "V", "JNJ"},
			Kinds:   []string{"quote"},
		},
		LogLevel: "info",
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.Provider.Name = strings.ToLower(v)
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("YAHOO_FINANCE_TIMEOUT"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Provider.TimeoutSec = x
		}
	}
	if v := os.Getenv("YAHOO_DAILY_RANGE"); v != "" {
		cfg.Provider.DailyRange = v
	}
	if v := os.Getenv("PROVIDER_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Provider.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("PROVIDER_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Provider.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("PROVIDER_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Provider.Burst = x
		}
	}

	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("CACHE_KEY_PREFIX"); v != "" {
		cfg.Cache.KeyPrefix = v
	}
	if v := os.Getenv("BOLT_PATH"); v != "" {
		cfg.Cache.BoltPath = v
	}
	if v := os.Getenv("CACHE_MAX_ITEMS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Cache.MaxItems = x
		}
	}
	if v := os.Getenv("CACHE_RETAIN_STALE_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Cache.RetainStaleSec = x
		}
	}
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Cache.DefaultTTLSec = x
		}
	}

	if v := os.Getenv("REFRESH_EVERY_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Refresh.EverySec = x
		}
	}
	if v := os.Getenv("REFRESH_MARGIN_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Refresh.MarginSec = x
		}
	}
	if v := os.Getenv("REFRESH_HOT_WINDOW_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Refresh.HotWindowSec = x
		}
	}
	if v := os.Getenv("REFRESH_BACKOFF_BASE_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Refresh.BackoffBaseSec = x
		}
	}
	if v := os.Getenv("REFRESH_BACKOFF_CAP_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Refresh.BackoffCapSec = x
		}
	}
	if v := os.Getenv("REFRESH_CONCURRENCY"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Refresh.Concurrency = x
		}
	}

	if v := os.Getenv("WARM_SYMBOLS"); v != "" {
		cfg.Warm.Symbols = splitCSV(v)
	}
	if v := os.Getenv("WARM_KINDS"); v != "" {
		cfg.Warm.Kinds = splitCSV(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
