package store

import (
	"context"
	"errors"
	"time"

	"github.com/blob451/MapleTrade/internal/provider"
)

// ErrUnavailable marks a backend failure (network, I/O). Callers treat the
// store as empty when they see it; it is never surfaced to readers.
var ErrUnavailable = errors.New("cache backend unavailable")

// Freshness classifies an entry relative to its TTL at a given instant.
type Freshness int

const (
	Absent Freshness = iota
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	}
	return "absent"
}

// Entry is one cached market datum. The store owns it; Get and Put copy the
// payload so callers never alias store-internal memory.
type Entry struct {
	Payload   []byte
	FetchedAt time.Time
	TTL       time.Duration
	LastError string
}

// FreshnessAt reports Fresh while now-FetchedAt < TTL, Stale from the
// boundary instant on.
func (e Entry) FreshnessAt(now time.Time) Freshness {
	if e.FetchedAt.IsZero() {
		return Absent
	}
	if now.Sub(e.FetchedAt) < e.TTL {
		return Fresh
	}
	return Stale
}

func (e Entry) clone() Entry {
	c := e
	if e.Payload != nil {
		c.Payload = append([]byte(nil), e.Payload...)
	}
	return c
}

// Store is the cache contract shared by the memory, redis and bolt backends.
// Lookups never call the provider. Writes follow newest-FetchedAt-wins so a
// slow fetch cannot clobber a newer one. Eviction or expiry inside the
// backend reads as absent, never as an error.
type Store interface {
	// Get returns the entry for key and whether one exists. Backend
	// failures wrap ErrUnavailable.
	Get(ctx context.Context, key provider.Key) (Entry, bool, error)

	// Put stores e unless an entry with an equal or newer FetchedAt is
	// already present, and reports whether the write was applied.
	Put(ctx context.Context, key provider.Key, e Entry) (bool, error)

	// SetLastError annotates the entry whose FetchedAt still equals ref.
	// A missing entry, or one already replaced by a newer fetch, is left
	// untouched.
	SetLastError(ctx context.Context, key provider.Key, ref time.Time, msg string) error

	// Invalidate removes the entry for key if present.
	Invalidate(ctx context.Context, key provider.Key) error

	Close() error
}
