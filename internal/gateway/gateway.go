// Package gateway mediates access to externally sourced, time-decaying
// market data. It serves cached values by freshness, deduplicates
// concurrent fetches per key, refreshes hot entries before they expire,
// and degrades to direct provider fetches when the cache backend is
// unreachable.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/blob451/MapleTrade/internal/provider"
	"github.com/blob451/MapleTrade/internal/store"
)

type Config struct {
	Provider provider.Provider
	Store    store.Store
	Logger   *slog.Logger

	// TTLs maps a data kind to its entry lifetime; DefaultTTL covers the
	// rest.
	TTLs       map[provider.Kind]time.Duration
	DefaultTTL time.Duration

	// RefreshMargin is how close to expiry an entry may get before the
	// refresher fetches it again. RefreshEvery is the scan tick.
	RefreshMargin time.Duration
	RefreshEvery  time.Duration

	// HotWindow is how long a key stays refresh-eligible after its last
	// read.
	HotWindow time.Duration

	// BackoffBase and BackoffCap bound the exponential retry delay for
	// keys whose background refresh keeps failing.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// ErrorLogEvery rate-limits repeated failure logging per key and for
	// store outages.
	ErrorLogEvery time.Duration

	// Concurrency caps parallel fetches during refresh scans and warmup.
	Concurrency int
}

// Result is what a read returns: the cached or just-fetched payload and
// how fresh it was at read time.
type Result struct {
	Payload   []byte
	FetchedAt time.Time
	TTL       time.Duration
	Freshness store.Freshness
}

type Gateway struct {
	cfg     Config
	log     *slog.Logger
	sf      singleflight.Group
	tracker *tracker
	stats   Stats

	degradeMu sync.Mutex
	degradeAt time.Time
}

func New(cfg Config) (*Gateway, error) {
	if cfg.Provider == nil {
		return nil, errors.New("gateway: provider is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("gateway: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.TTLs == nil {
		cfg.TTLs = map[provider.Kind]time.Duration{
			provider.KindQuote:   5 * time.Minute,
			provider.KindDaily:   time.Hour,
			provider.KindProfile: 4 * time.Hour,
		}
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = time.Minute
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 30 * time.Second
	}
	if cfg.HotWindow <= 0 {
		cfg.HotWindow = 15 * time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 32 * time.Second
	}
	if cfg.ErrorLogEvery <= 0 {
		cfg.ErrorLogEvery = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Gateway{
		cfg:     cfg,
		log:     cfg.Logger,
		tracker: newTracker(cfg.HotWindow, cfg.BackoffBase, cfg.BackoffCap, cfg.ErrorLogEvery),
	}, nil
}

// Get returns the cached value for key, fetching it first when nothing is
// cached. Fresh and stale hits never fail; a stale hit triggers a
// background refresh off the read path. Only an absent key whose fetch
// fails returns an error.
func (g *Gateway) Get(ctx context.Context, key provider.Key) (Result, error) {
	if !key.Kind.Valid() {
		return Result{}, fmt.Errorf("gateway: unknown kind %q", key.Kind)
	}

	ent, found, err := g.cfg.Store.Get(ctx, key)
	if err != nil {
		// Backend outage reads as a miss; availability wins.
		g.noteStoreError(err)
		ent, found = store.Entry{}, false
	}
	now := time.Now()
	if found {
		g.tracker.touch(key, now)
		switch ent.FreshnessAt(now) {
		case store.Fresh:
			g.stats.Fresh.Add(1)
			return result(ent, store.Fresh), nil
		case store.Stale:
			g.stats.Stale.Add(1)
			if g.tracker.shouldAttempt(key, now) {
				g.runOrJoin(ctx, key, provider.ModeBackground, ent.FetchedAt)
			}
			return result(ent, store.Stale), nil
		}
	}

	g.stats.Miss.Add(1)
	ch := g.runOrJoin(ctx, key, provider.ModeBlocking, time.Time{})
	select {
	case <-ctx.Done():
		// Detach this reader; the fetch keeps running for the others and
		// for cache population.
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		fetched := res.Val.(store.Entry)
		g.tracker.touch(key, time.Now())
		return result(fetched, store.Fresh), nil
	}
}

// Invalidate drops the cached entry and any refresh state for key.
func (g *Gateway) Invalidate(ctx context.Context, key provider.Key) error {
	g.tracker.forget(key)
	if err := g.cfg.Store.Invalidate(ctx, key); err != nil {
		g.noteStoreError(err)
		return err
	}
	return nil
}

// Pin keeps the keys refresh-eligible even without recent reads.
func (g *Gateway) Pin(keys ...provider.Key) {
	g.tracker.pin(keys...)
}

func (g *Gateway) Stats() StatsSnapshot {
	return g.stats.snapshot()
}

// runOrJoin starts the single in-flight fetch for key, or joins the one
// already running. The returned channel is buffered, so discarding it is
// safe for fire-and-forget refreshes. The fetch and its cache population
// outlive any single caller's cancellation; the provider bounds the
// attempt with its own timeout. ref is the FetchedAt observed by a
// background trigger, used to annotate the right entry on failure.
func (g *Gateway) runOrJoin(ctx context.Context, key provider.Key, mode provider.FetchMode, ref time.Time) <-chan singleflight.Result {
	fetchCtx := context.WithoutCancel(ctx)
	return g.sf.DoChan(key.String(), func() (any, error) {
		g.stats.Fetches.Add(1)
		if mode == provider.ModeBackground {
			g.stats.Refreshes.Add(1)
		}
		raw, err := g.cfg.Provider.Fetch(fetchCtx, key)
		if err != nil {
			g.stats.FetchErrors.Add(1)
			g.noteFetchFailure(fetchCtx, key, mode, ref, err)
			return nil, err
		}
		ent := store.Entry{Payload: raw, FetchedAt: time.Now(), TTL: g.ttlFor(key.Kind)}
		if _, perr := g.cfg.Store.Put(fetchCtx, key, ent); perr != nil {
			g.noteStoreError(perr)
		}
		g.tracker.success(key)
		return ent, nil
	})
}

func (g *Gateway) ttlFor(kind provider.Kind) time.Duration {
	if ttl, ok := g.cfg.TTLs[kind]; ok && ttl > 0 {
		return ttl
	}
	return g.cfg.DefaultTTL
}

// noteFetchFailure records a background failure on the stale entry and
// advances the key's backoff. Blocking failures propagate to the caller
// instead and leave no trace in the store.
func (g *Gateway) noteFetchFailure(ctx context.Context, key provider.Key, mode provider.FetchMode, ref time.Time, err error) {
	if mode != provider.ModeBackground {
		return
	}
	if !ref.IsZero() {
		if serr := g.cfg.Store.SetLastError(ctx, key, ref, err.Error()); serr != nil {
			g.noteStoreError(serr)
		}
	}
	retryIn, logIt := g.tracker.failure(key, time.Now())
	if logIt {
		g.log.Warn("background refresh failed",
			"key", key.String(),
			"provider", g.cfg.Provider.Name(),
			"retry_in", retryIn,
			"err", err)
	}
}

// noteStoreError counts a cache backend failure and logs it at most once
// per ErrorLogEvery.
func (g *Gateway) noteStoreError(err error) {
	g.stats.StoreErrors.Add(1)
	g.degradeMu.Lock()
	logIt := g.degradeAt.IsZero() || time.Since(g.degradeAt) >= g.cfg.ErrorLogEvery
	if logIt {
		g.degradeAt = time.Now()
	}
	g.degradeMu.Unlock()
	if logIt {
		g.log.Warn("cache backend unavailable, serving direct fetches", "err", err)
	}
}

func result(ent store.Entry, f store.Freshness) Result {
	return Result{Payload: ent.Payload, FetchedAt: ent.FetchedAt, TTL: ent.TTL, Freshness: f}
}
