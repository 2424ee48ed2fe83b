package gateway

import (
	"sync"
	"time"

	"github.com/blob451/MapleTrade/internal/provider"
)

// tracker remembers which keys are hot (read recently or pinned) and holds
// the per-key retry state for failed background refreshes.
type tracker struct {
	window   time.Duration
	base     time.Duration
	max      time.Duration
	logEvery time.Duration

	mu   sync.Mutex
	keys map[provider.Key]*keyState
	pins map[provider.Key]struct{}
}

type keyState struct {
	lastRead  time.Time
	fails     int
	nextTry   time.Time
	lastLogAt time.Time
}

func newTracker(window, base, max, logEvery time.Duration) *tracker {
	return &tracker{
		window:   window,
		base:     base,
		max:      max,
		logEvery: logEvery,
		keys:     make(map[provider.Key]*keyState),
		pins:     make(map[provider.Key]struct{}),
	}
}

func (t *tracker) touch(key provider.Key, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateLocked(key).lastRead = now
}

// pin keeps the keys hot regardless of read activity.
func (t *tracker) pin(keys ...provider.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range keys {
		t.pins[key] = struct{}{}
		t.stateLocked(key)
	}
}

// hot returns the keys still worth refreshing and prunes the rest.
func (t *tracker) hot(now time.Time) []provider.Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]provider.Key, 0, len(t.keys))
	for key, st := range t.keys {
		if _, pinned := t.pins[key]; !pinned && now.Sub(st.lastRead) > t.window {
			delete(t.keys, key)
			continue
		}
		out = append(out, key)
	}
	return out
}

// shouldAttempt reports whether the key is outside its backoff window.
func (t *tracker) shouldAttempt(key provider.Key, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.keys[key]
	if !ok {
		return true
	}
	return !now.Before(st.nextTry)
}

// failure advances the key's backoff and reports the retry delay plus
// whether this occurrence should be logged.
func (t *tracker) failure(key provider.Key, now time.Time) (retryIn time.Duration, logIt bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stateLocked(key)
	st.fails++
	delay := t.base
	for i := 1; i < st.fails && delay < t.max; i++ {
		delay *= 2
	}
	if delay > t.max {
		delay = t.max
	}
	st.nextTry = now.Add(delay)
	if logIt = st.lastLogAt.IsZero() || now.Sub(st.lastLogAt) >= t.logEvery; logIt {
		st.lastLogAt = now
	}
	return delay, logIt
}

func (t *tracker) success(key provider.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.keys[key]; ok {
		st.fails = 0
		st.nextTry = time.Time{}
		st.lastLogAt = time.Time{}
	}
}

func (t *tracker) forget(key provider.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.keys, key)
	delete(t.pins, key)
}

func (t *tracker) stateLocked(key provider.Key) *keyState {
	st, ok := t.keys[key]
	if !ok {
		st = &keyState{}
		t.keys[key] = st
	}
	return st
}
