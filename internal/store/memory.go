package store

import (
	"context"
	"sync"
	"time"

	"github.com/blob451/MapleTrade/internal/provider"
)

const sweepEvery = time.Minute

// Memory is the in-process Store. Stale entries stay servable until a
// retention window past their TTL; a best-effort cap bounds entry count.
type Memory struct {
	maxItems int
	retain   time.Duration

	mu      sync.RWMutex
	entries map[provider.Key]Entry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory builds a memory store. maxItems <= 0 means uncapped; retain <= 0
// disables the background sweep so entries live until invalidated or evicted.
func NewMemory(maxItems int, retain time.Duration) *Memory {
	m := &Memory{
		maxItems: maxItems,
		retain:   retain,
		entries:  make(map[provider.Key]Entry),
		stop:     make(chan struct{}),
	}
	if retain > 0 {
		go m.janitor()
	}
	return m
}

func (m *Memory) Get(_ context.Context, key provider.Key) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	return e.clone(), true, nil
}

func (m *Memory) Put(_ context.Context, key provider.Key, e Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.entries[key]
	if exists && !e.FetchedAt.After(cur.FetchedAt) {
		return false, nil
	}
	if !exists && m.maxItems > 0 && len(m.entries) >= m.maxItems {
		m.evictOldestLocked()
	}
	m.entries[key] = e.clone()
	return true, nil
}

func (m *Memory) SetLastError(_ context.Context, key provider.Key, ref time.Time, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[key]; ok && cur.FetchedAt.Equal(ref) {
		cur.LastError = msg
		m.entries[key] = cur
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key provider.Key) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// evictOldestLocked drops the entry with the oldest FetchedAt.
func (m *Memory) evictOldestLocked() {
	var victim provider.Key
	var oldest time.Time
	found := false
	for k, e := range m.entries {
		if !found || e.FetchedAt.Before(oldest) {
			found = true
			victim, oldest = k, e.FetchedAt
		}
	}
	if found {
		delete(m.entries, victim)
	}
}

func (m *Memory) janitor() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.sweep(time.Now())
		}
	}
}

// sweep drops entries stale for longer than the retention window.
func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	for k, e := range m.entries {
		if now.Sub(e.FetchedAt) > e.TTL+m.retain {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}
