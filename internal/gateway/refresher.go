package gateway

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blob451/MapleTrade/internal/provider"
)

// RunRefresher scans hot keys on a fixed tick and refreshes entries that
// are within RefreshMargin of expiry, off the read path. It blocks until
// ctx is canceled.
func (g *Gateway) RunRefresher(ctx context.Context) error {
	t := time.NewTicker(g.cfg.RefreshEvery)
	defer t.Stop()
	g.log.Info("refresher started", "every", g.cfg.RefreshEvery, "margin", g.cfg.RefreshMargin)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			g.scanOnce(ctx)
		}
	}
}

// scanOnce runs one refresh pass over the hot keys.
func (g *Gateway) scanOnce(ctx context.Context) {
	now := time.Now()
	keys := g.tracker.hot(now)
	if len(keys) == 0 {
		return
	}
	var eg errgroup.Group
	eg.SetLimit(g.cfg.Concurrency)
	for _, key := range keys {
		eg.Go(func() error {
			g.refreshKey(ctx, key, now)
			return nil
		})
	}
	_ = eg.Wait()
}

func (g *Gateway) refreshKey(ctx context.Context, key provider.Key, now time.Time) {
	ent, found, err := g.cfg.Store.Get(ctx, key)
	if err != nil {
		g.noteStoreError(err)
		return
	}
	if !found {
		// Evicted; the next reader miss repopulates it.
		return
	}
	if now.Sub(ent.FetchedAt) < ent.TTL-g.cfg.RefreshMargin {
		return
	}
	if !g.tracker.shouldAttempt(key, now) {
		return
	}
	ch := g.runOrJoin(ctx, key, provider.ModeBackground, ent.FetchedAt)
	select {
	case <-ctx.Done():
	case <-ch:
	}
}
