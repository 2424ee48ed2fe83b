package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/blob451/MapleTrade/internal/provider"
)

var boltBucket = []byte("entries")

// boltEntry is the on-disk envelope.
type boltEntry struct {
	Payload   []byte `json:"payload"`
	FetchedAt int64  `json:"fetched_at"` // unix nanoseconds
	TTLMillis int64  `json:"ttl_ms"`
	LastError string `json:"last_error,omitempty"`
}

// Bolt is the single-file Store for deployments without a shared cache
// service. Newest-wins runs inside the update transaction.
type Bolt struct {
	db     *bolt.DB
	retain time.Duration
}

func NewBolt(path string, retain time.Duration) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Bolt{db: db, retain: retain}, nil
}

func boltErr(op string, err error) error {
	return fmt.Errorf("bolt %s: %w", op, errors.Join(ErrUnavailable, err))
}

func (b *Bolt) Get(_ context.Context, key provider.Key) (Entry, bool, error) {
	var be boltEntry
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(key.String()))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &be); err != nil {
			// unreadable entry, treat as absent
			return nil
		}
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, boltErr("get", err)
	}
	if !found {
		return Entry{}, false, nil
	}
	e := Entry{
		Payload:   be.Payload,
		FetchedAt: time.Unix(0, be.FetchedAt),
		TTL:       time.Duration(be.TTLMillis) * time.Millisecond,
		LastError: be.LastError,
	}
	// past the retention window the entry reads as evicted
	if b.retain > 0 && time.Since(e.FetchedAt) > e.TTL+b.retain {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (b *Bolt) Put(_ context.Context, key provider.Key, e Entry) (bool, error) {
	stored := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(boltBucket)
		k := []byte(key.String())
		if raw := bkt.Get(k); raw != nil {
			var cur boltEntry
			if json.Unmarshal(raw, &cur) == nil && cur.FetchedAt >= e.FetchedAt.UnixNano() {
				return nil
			}
		}
		raw, err := json.Marshal(boltEntry{
			Payload:   e.Payload,
			FetchedAt: e.FetchedAt.UnixNano(),
			TTLMillis: e.TTL.Milliseconds(),
			LastError: e.LastError,
		})
		if err != nil {
			return err
		}
		stored = true
		return bkt.Put(k, raw)
	})
	if err != nil {
		return false, boltErr("put", err)
	}
	return stored, nil
}

func (b *Bolt) SetLastError(_ context.Context, key provider.Key, ref time.Time, msg string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(boltBucket)
		k := []byte(key.String())
		raw := bkt.Get(k)
		if raw == nil {
			return nil
		}
		var cur boltEntry
		if json.Unmarshal(raw, &cur) != nil || cur.FetchedAt != ref.UnixNano() {
			return nil
		}
		cur.LastError = msg
		out, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		return bkt.Put(k, out)
	})
	if err != nil {
		return boltErr("set last error", err)
	}
	return nil
}

func (b *Bolt) Invalidate(_ context.Context, key provider.Key) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key.String()))
	})
	if err != nil {
		return boltErr("del", err)
	}
	return nil
}

func (b *Bolt) Close() error { return b.db.Close() }
