package gateway

import "sync/atomic"

// Stats counts gateway activity. All fields are safe for concurrent use.
type Stats struct {
	Fresh       atomic.Int64
	Stale       atomic.Int64
	Miss        atomic.Int64
	Fetches     atomic.Int64
	FetchErrors atomic.Int64
	Refreshes   atomic.Int64
	StoreErrors atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Fresh       int64 `json:"fresh"`
	Stale       int64 `json:"stale"`
	Miss        int64 `json:"miss"`
	Fetches     int64 `json:"fetches"`
	FetchErrors int64 `json:"fetch_errors"`
	Refreshes   int64 `json:"refreshes"`
	StoreErrors int64 `json:"store_errors"`
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Fresh:       s.Fresh.Load(),
		Stale:       s.Stale.Load(),
		Miss:        s.Miss.Load(),
		Fetches:     s.Fetches.Load(),
		FetchErrors: s.FetchErrors.Load(),
		Refreshes:   s.Refreshes.Load(),
		StoreErrors: s.StoreErrors.Load(),
	}
}
