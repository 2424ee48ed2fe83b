package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
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

// warmd primes the cache for the configured symbols, then keeps the pinned
// keys fresh in the background until it is signalled to stop.
func main() {
	var (
		configPath string
		symbolsCSV string
		kindsCSV   string
		once       bool
	)
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.StringVar(&symbolsCSV, "symbols", "", "override warm symbols (CSV)")
	flag.StringVar(&kindsCSV, "kinds", "", "override warm kinds (CSV)")
	flag.BoolVar(&once, "once", false, "warm the cache once and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if symbolsCSV != "" {
		cfg.Warm.Symbols = splitCSV(symbolsCSV)
	}
	if kindsCSV != "" {
		cfg.Warm.Kinds = splitCSV(kindsCSV)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))

	keys := warmKeys(cfg.Warm, logger)
	if len(keys) == 0 {
		logger.Error("nothing to warm; configure warm.symbols and warm.kinds")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw.Pin(keys...)
	logger.Info("warming cache",
		"provider", cfg.Provider.Name,
		"backend", cfg.Cache.Backend,
		"keys", len(keys))
	failed := gw.Warm(ctx, keys)
	for key, err := range failed {
		logger.Warn("warm failed", "key", key.String(), "err", err)
	}
	logger.Info("cache warmed", "ok", len(keys)-len(failed), "failed", len(failed))

	if once {
		if len(failed) == len(keys) {
			os.Exit(1)
		}
		return
	}

	if err := gw.RunRefresher(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("refresher stopped", "err", err)
		os.Exit(1)
	}
	snap := gw.Stats()
	logger.Info("shutdown complete",
		"fresh", snap.Fresh,
		"stale", snap.Stale,
		"miss", snap.Miss,
		"fetches", snap.Fetches,
		"fetch_errors", snap.FetchErrors,
		"refreshes", snap.Refreshes,
		"store_errors", snap.StoreErrors)
}

func warmKeys(cfg config.Warm, logger *slog.Logger) []provider.Key {
	kinds := make([]provider.Kind, 0, len(cfg.Kinds))
	for _, k := range cfg.Kinds {
		kind := provider.Kind(strings.ToLower(strings.TrimSpace(k)))
		if !kind.Valid() {
			logger.Warn("skipping unknown kind", "kind", k)
			continue
		}
		kinds = append(kinds, kind)
	}
	keys := make([]provider.Key, 0, len(cfg.Symbols)*len(kinds))
	for _, s := range cfg.Symbols {
		for _, kind := range kinds {
			keys = append(keys, provider.NewKey(s, kind))
		}
	}
	return keys
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
