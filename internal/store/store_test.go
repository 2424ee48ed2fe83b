package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFreshnessBoundaries(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	e := Entry{Payload: []byte(`{}`), FetchedAt: at, TTL: 60 * time.Second}

	require.Equal(t, Fresh, e.FreshnessAt(at.Add(59*time.Second)))
	require.Equal(t, Stale, e.FreshnessAt(at.Add(60*time.Second)))
	require.Equal(t, Stale, e.FreshnessAt(at.Add(61*time.Second)))
	require.Equal(t, Absent, Entry{}.FreshnessAt(at))
}

func TestFreshnessString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "fresh", Fresh.String())
	require.Equal(t, "stale", Stale.String())
	require.Equal(t, "absent", Absent.String())
}
