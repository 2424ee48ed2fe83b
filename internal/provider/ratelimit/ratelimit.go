package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/blob451/MapleTrade/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between upstream
// calls. Concurrent callers wait until the interval has elapsed since the
// last call, or return early when the context is canceled.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Fetch(ctx context.Context, key provider.Key) ([]byte, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
	raw, err := m.P.Fetch(ctx, key)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return raw, err
}
