package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blob451/MapleTrade/internal/config"
	"github.com/blob451/MapleTrade/internal/gateway"
	"github.com/blob451/MapleTrade/internal/httpx"
	"github.com/blob451/MapleTrade/internal/logging"
	"github.com/blob451/MapleTrade/internal/provider"
	"github.com/blob451/MapleTrade/internal/provider/ratelimit"
	"github.com/blob451/MapleTrade/internal/provider/synthetic"
	"github.com/blob451/MapleTrade/internal/provider/yahoo"
	"github.com/blob451/MapleTrade/internal/store"
)

func main() {
	var (
		configPath   string
		symbolsCSV   string
		kindStr      string
		providerName string
		backend      string
		timeout      int
		pretty       bool
		showStats    bool
	)
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "AAPL,MSFT"), "comma-separated ticker symbols")
	flag.StringVar(&kindStr, "kind", getenv("DATA_KIND", "quote"), "data kind: quote, daily or profile")
	flag.StringVar(&providerName, "provider", "", "data provider: yahoo or synthetic (default from config)")
	flag.StringVar(&backend, "backend", "", "cache backend: memory, redis or bolt (default from config)")
	flag.IntVar(&timeout, "timeout", 0, "provider timeout seconds (default from config)")
	flag.BoolVar(&pretty, "pretty", false, "indent JSON output")
	flag.BoolVar(&showStats, "stats", false, "include gateway counters in the output")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if providerName != "" {
		cfg.Provider.Name = strings.ToLower(providerName)
	}
	if backend != "" {
		cfg.Cache.Backend = strings.ToLower(backend)
	}
	if timeout > 0 {
		cfg.Provider.TimeoutSec = timeout
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))

	kind := provider.Kind(strings.ToLower(strings.TrimSpace(kindStr)))
	if !kind.Valid() {
		logger.Error("unknown kind", "kind", kindStr)
		os.Exit(1)
	}
	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		logger.Error("no symbols provided")
		os.Exit(1)
	}

	st := buildStore(cfg.Cache, logger)
	defer st.Close()

	gw, err := gateway.New(gateway.Config{
		Provider:      buildProvider(cfg.Provider),
		Store:         st,
		Logger:        logger,
		TTLs:          ttlsFrom(cfg.Cache),
		DefaultTTL:    time.Duration(cfg.Cache.DefaultTTLSec) * time.Second,
		RefreshMargin: time.Duration(cfg.Refresh.MarginSec) * time.Second,
		RefreshEvery:  time.Duration(cfg.Refresh.EverySec) * time.Second,
		HotWindow:     time.Duration(cfg.Refresh.HotWindowSec) * time.Second,
		BackoffBase:   time.Duration(cfg.Refresh.BackoffBaseSec) * time.Second,
		BackoffCap:    time.Duration(cfg.Refresh.BackoffCapSec) * time.Second,
		ErrorLogEvery: time.Duration(cfg.Refresh.ErrorLogEverySec) * time.Second,
		Concurrency:   cfg.Refresh.Concurrency,
	})
	if err != nil {
		logger.Error("gateway", "err", err)
		os.Exit(1)
	}

	// One deadline for the whole run; each fetch is already bounded by the
	// provider's own timeout.
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Provider.TimeoutSec+10)*time.Second)
	defer cancel()

	type result struct {
		key provider.Key
		res gateway.Result
		err error
	}
	keys := make([]provider.Key, 0, len(symbols))
	for _, s := range symbols {
		keys = append(keys, provider.NewKey(s, kind))
	}
	ch := make(chan result, len(keys))
	for _, k := range keys {
		go func() {
			res, err := gw.Get(ctx, k)
			ch <- result{key: k, res: res, err: err}
		}()
	}

	type row struct {
		Symbol    string          `json:"symbol"`
		Kind      string          `json:"kind"`
		Freshness string          `json:"freshness"`
		FetchedAt time.Time       `json:"fetched_at"`
		AgeSec    int64           `json:"age_sec"`
		Data      json.RawMessage `json:"data"`
	}
	rows := make([]row, 0, len(keys))
	for range keys {
		r := <-ch
		if r.err != nil {
			logger.Error("fetch failed", "key", r.key.String(), "err", r.err)
			continue
		}
		rows = append(rows, row{
			Symbol:    r.key.Symbol,
			Kind:      string(r.key.Kind),
			Freshness: r.res.Freshness.String(),
			FetchedAt: r.res.FetchedAt.UTC(),
			AgeSec:    int64(time.Since(r.res.FetchedAt).Seconds()),
			Data:      json.RawMessage(r.res.Payload),
		})
	}
	if len(rows) == 0 {
		logger.Error("no data received")
		os.Exit(1)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	out := struct {
		Rows  []row                  `json:"rows"`
		Stats *gateway.StatsSnapshot `json:"stats,omitempty"`
	}{Rows: rows}
	if showStats {
		snap := gw.Stats()
		out.Stats = &snap
	}
	var b []byte
	if pretty {
		b, _ = json.MarshalIndent(out, "", "  ")
	} else {
		b, _ = json.Marshal(out)
	}
	fmt.Println(string(b))

	if len(rows) < len(keys) {
		os.Exit(1)
	}
}

func buildProvider(cfg config.Provider) provider.Provider {
	var p provider.Provider
	switch cfg.Name {
	case "synthetic":
		p = synthetic.New("Synthetic", 0)
	default:
		hc := httpx.New(time.Duration(cfg.TimeoutSec) * time.Second)
		p = yahoo.New(yahoo.Config{
			BaseURL:    cfg.BaseURL,
			Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
			DailyRange: cfg.DailyRange,
		}, hc)
	}
	if cfg.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.MaxRequestsPerMinute) / 60.0
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(rate, burst)}
	} else if cfg.MinRequestIntervalSec > 0 {
		p = &ratelimit.MinInterval{P: p, Interval: time.Duration(cfg.MinRequestIntervalSec) * time.Second}
	}
	return p
}

// buildStore falls back to the in-memory cache when the configured backend
// cannot be reached; readers then degrade to direct fetches instead of
// failing.
func buildStore(cfg config.Cache, logger *slog.Logger) store.Store {
	retain := time.Duration(cfg.RetainStaleSec) * time.Second
	switch cfg.Backend {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("bad redis url", "err", err)
			os.Exit(1)
		}
		st, err := store.NewRedis(opt, cfg.KeyPrefix, retain)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory cache", "err", err)
			return store.NewMemory(cfg.MaxItems, retain)
		}
		return st
	case "bolt":
		st, err := store.NewBolt(cfg.BoltPath, retain)
		if err != nil {
			logger.Warn("bolt unavailable, using in-memory cache", "err", err)
			return store.NewMemory(cfg.MaxItems, retain)
		}
		return st
	default:
		return store.NewMemory(cfg.MaxItems, retain)
	}
}

func ttlsFrom(cfg config.Cache) map[provider.Kind]time.Duration {
	out := make(map[provider.Kind]time.Duration, len(cfg.TTLSec))
	for kind, sec := range cfg.TTLSec {
		if sec > 0 {
			out[provider.Kind(kind)] = time.Duration(sec) * time.Second
		}
	}
	return out
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

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
