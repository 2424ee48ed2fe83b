package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blob451/MapleTrade/internal/provider"
)

// Entry hash fields. Key expiry covers TTL plus the retention window so
// stale entries remain servable until retention runs out.
const (
	fieldPayload   = "payload"
	fieldFetchedAt = "fetched_at" // unix nanoseconds
	fieldTTL       = "ttl_ms"
	fieldLastError = "last_error"
)

// putScript applies newest-FetchedAt-wins atomically on the server, so
// concurrent writers from different processes cannot interleave the compare
// and the write.
var putScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'fetched_at')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'payload', ARGV[2], 'fetched_at', ARGV[1], 'ttl_ms', ARGV[3], 'last_error', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// errScript records a refresh failure only while the entry is unchanged, so
// an error from a slow attempt never lands on a newer entry.
var errScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'fetched_at')
if cur and tonumber(cur) == tonumber(ARGV[1]) then
	redis.call('HSET', KEYS[1], 'last_error', ARGV[2])
	return 1
end
return 0
`)

// Redis is the shared-cache Store: one hash per key under the configured
// prefix, cross-field updates through Lua.
type Redis struct {
	rdb    *redis.Client
	prefix string
	retain time.Duration
}

// NewRedis connects and pings the backend. prefix defaults to "mapletrade";
// retain is how long past its TTL an entry stays servable before redis
// expires it.
func NewRedis(opt *redis.Options, prefix string, retain time.Duration) (*Redis, error) {
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if prefix == "" {
		prefix = "mapletrade"
	}
	return &Redis{rdb: rdb, prefix: prefix, retain: retain}, nil
}

func (r *Redis) key(k provider.Key) string { return r.prefix + ":" + k.String() }

func redisErr(op string, err error) error {
	return fmt.Errorf("redis %s: %w", op, errors.Join(ErrUnavailable, err))
}

func (r *Redis) Get(ctx context.Context, key provider.Key) (Entry, bool, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key(key)).Result()
	if err != nil {
		return Entry{}, false, redisErr("get", err)
	}
	if len(vals) == 0 {
		return Entry{}, false, nil
	}
	nanos, err := strconv.ParseInt(vals[fieldFetchedAt], 10, 64)
	if err != nil {
		// unreadable entry, treat as absent
		return Entry{}, false, nil
	}
	ttlMS, _ := strconv.ParseInt(vals[fieldTTL], 10, 64)
	return Entry{
		Payload:   []byte(vals[fieldPayload]),
		FetchedAt: time.Unix(0, nanos),
		TTL:       time.Duration(ttlMS) * time.Millisecond,
		LastError: vals[fieldLastError],
	}, true, nil
}

func (r *Redis) Put(ctx context.Context, key provider.Key, e Entry) (bool, error) {
	expire := e.TTL + r.retain
	if expire <= 0 {
		expire = time.Hour
	}
	stored, err := putScript.Run(ctx, r.rdb, []string{r.key(key)},
		e.FetchedAt.UnixNano(),
		e.Payload,
		e.TTL.Milliseconds(),
		e.LastError,
		expire.Milliseconds(),
	).Int()
	if err != nil {
		return false, redisErr("put", err)
	}
	return stored == 1, nil
}

func (r *Redis) SetLastError(ctx context.Context, key provider.Key, ref time.Time, msg string) error {
	if err := errScript.Run(ctx, r.rdb, []string{r.key(key)}, ref.UnixNano(), msg).Err(); err != nil {
		return redisErr("set last error", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, key provider.Key) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return redisErr("del", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
