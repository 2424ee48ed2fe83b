package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blob451/MapleTrade/internal/provider"
	"github.com/blob451/MapleTrade/internal/store"
)

// Warm primes the cache for keys, fetching any entry that is absent or no
// longer fresh. It returns the per-key failures; an empty map means every
// key is warm.
func (g *Gateway) Warm(ctx context.Context, keys []provider.Key) map[provider.Key]error {
	var (
		mu  sync.Mutex
		out = make(map[provider.Key]error)
	)
	var eg errgroup.Group
	eg.SetLimit(g.cfg.Concurrency)
	for _, key := range keys {
		eg.Go(func() error {
			if err := g.warmKey(ctx, key); err != nil {
				mu.Lock()
				out[key] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func (g *Gateway) warmKey(ctx context.Context, key provider.Key) error {
	if !key.Kind.Valid() {
		return fmt.Errorf("gateway: unknown kind %q", key.Kind)
	}
	now := time.Now()
	ent, found, err := g.cfg.Store.Get(ctx, key)
	if err != nil {
		g.noteStoreError(err)
		found = false
	}
	var ref time.Time
	if found {
		if ent.FreshnessAt(now) == store.Fresh {
			return nil
		}
		ref = ent.FetchedAt
	}
	ch := g.runOrJoin(ctx, key, provider.ModeBackground, ref)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}
