package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blob451/MapleTrade/internal/provider"
)

func TestMemoryPutGetCopies(t *testing.T) {
	t.Parallel()
	m := NewMemory(0, 0)
	defer m.Close()
	ctx := t.Context()
	key := provider.NewKey("AAPL", provider.KindQuote)

	payload := []byte(`{"price":"189.84"}`)
	stored, err := m.Put(ctx, key, Entry{Payload: payload, FetchedAt: time.Now(), TTL: time.Minute})
	require.NoError(t, err)
	require.True(t, stored)

	// mutations on either side must not reach the stored entry
	payload[2] = 'X'
	got, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"price":"189.84"}`, string(got.Payload))

	got.Payload[2] = 'Y'
	again, _, _ := m.Get(ctx, key)
	require.JSONEq(t, `{"price":"189.84"}`, string(again.Payload))
}

func TestMemoryNewestWins(t *testing.T) {
	t.Parallel()
	m := NewMemory(0, 0)
	defer m.Close()
	ctx := t.Context()
	key := provider.NewKey("MSFT", provider.KindQuote)
	t0 := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	// the fetch that completed first carries the newer timestamp
	stored, err := m.Put(ctx, key, Entry{Payload: []byte(`"new"`), FetchedAt: t0.Add(2 * time.Second), TTL: time.Minute})
	require.NoError(t, err)
	require.True(t, stored)

	// a slower, older fetch lands afterwards and must be discarded
	stored, err = m.Put(ctx, key, Entry{Payload: []byte(`"old"`), FetchedAt: t0, TTL: time.Minute})
	require.NoError(t, err)
	require.False(t, stored)

	// equal FetchedAt is not strictly newer
	stored, err = m.Put(ctx, key, Entry{Payload: []byte(`"tie"`), FetchedAt: t0.Add(2 * time.Second), TTL: time.Minute})
	require.NoError(t, err)
	require.False(t, stored)

	got, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `"new"`, string(got.Payload))
	require.True(t, got.FetchedAt.Equal(t0.Add(2*time.Second)))
}

func TestMemorySetLastErrorGuardsRef(t *testing.T) {
	t.Parallel()
	m := NewMemory(0, 0)
	defer m.Close()
	ctx := t.Context()
	key := provider.NewKey("TSLA", provider.KindQuote)
	t0 := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	_, err := m.Put(ctx, key, Entry{Payload: []byte(`"v1"`), FetchedAt: t0, TTL: time.Minute})
	require.NoError(t, err)

	require.NoError(t, m.SetLastError(ctx, key, t0, "upstream status 503"))
	got, _, _ := m.Get(ctx, key)
	require.Equal(t, "upstream status 503", got.LastError)

	// a newer entry must not inherit an older attempt's error
	_, err = m.Put(ctx, key, Entry{Payload: []byte(`"v2"`), FetchedAt: t0.Add(time.Second), TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, m.SetLastError(ctx, key, t0, "late failure"))
	got, _, _ = m.Get(ctx, key)
	require.Empty(t, got.LastError)

	// absent key is a no-op
	require.NoError(t, m.SetLastError(ctx, provider.NewKey("NOPE", provider.KindQuote), t0, "x"))
}

func TestMemoryInvalidate(t *testing.T) {
	t.Parallel()
	m := NewMemory(0, 0)
	defer m.Close()
	ctx := t.Context()
	key := provider.NewKey("AMZN", provider.KindDaily)

	_, err := m.Put(ctx, key, Entry{Payload: []byte(`"x"`), FetchedAt: time.Now(), TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, m.Invalidate(ctx, key))

	_, ok, err := m.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryEvictsOldestAtCap(t *testing.T) {
	t.Parallel()
	m := NewMemory(3, 0)
	defer m.Close()
	ctx := t.Context()
	t0 := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		key := provider.NewKey(fmt.Sprintf("SYM%d", i), provider.KindQuote)
		_, err := m.Put(ctx, key, Entry{
			Payload:   []byte(`"x"`),
			FetchedAt: t0.Add(time.Duration(i) * time.Second),
			TTL:       time.Minute,
		})
		require.NoError(t, err)
	}

	require.Equal(t, 3, m.Len())
	_, ok, _ := m.Get(ctx, provider.NewKey("SYM0", provider.KindQuote))
	require.False(t, ok, "oldest fetch should have been evicted")
	_, ok, _ = m.Get(ctx, provider.NewKey("SYM3", provider.KindQuote))
	require.True(t, ok)
}

func TestMemorySweepDropsLongStale(t *testing.T) {
	t.Parallel()
	m := NewMemory(0, time.Minute)
	defer m.Close()
	ctx := t.Context()
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	old := provider.NewKey("OLD", provider.KindQuote)
	kept := provider.NewKey("KEPT", provider.KindQuote)
	_, err := m.Put(ctx, old, Entry{Payload: []byte(`"x"`), FetchedAt: now.Add(-10 * time.Minute), TTL: time.Minute})
	require.NoError(t, err)
	_, err = m.Put(ctx, kept, Entry{Payload: []byte(`"y"`), FetchedAt: now.Add(-90 * time.Second), TTL: time.Minute})
	require.NoError(t, err)

	m.sweep(now)

	_, ok, _ := m.Get(ctx, old)
	require.False(t, ok)
	_, ok, _ = m.Get(ctx, kept)
	require.True(t, ok, "stale inside the retention window stays servable")
}
