package synthetic

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blob451/MapleTrade/internal/provider"
)

func TestFetchQuoteStaysNearBaseline(t *testing.T) {
	t.Parallel()

	p := New("", 0)
	raw, err := p.Fetch(t.Context(), provider.NewKey("AAPL", provider.KindQuote))
	require.NoError(t, err)

	var q provider.Quote
	require.NoError(t, json.Unmarshal(raw, &q))
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, "Synthetic", q.Source)
	require.Equal(t, "180.00", q.PreviousClose)

	px, err := strconv.ParseFloat(q.Price, 64)
	require.NoError(t, err)
	require.InDelta(t, 180, px, 180*0.02)
}

func TestFetchDailySkipsWeekends(t *testing.T) {
	t.Parallel()

	p := New("", 30)
	raw, err := p.Fetch(t.Context(), provider.NewKey("MSFT", provider.KindDaily))
	require.NoError(t, err)

	var h provider.History
	require.NoError(t, json.Unmarshal(raw, &h))
	require.NotEmpty(t, h.Bars)
	require.Less(t, len(h.Bars), 30)
	for _, b := range h.Bars {
		d, err := time.Parse("2006-01-02", b.Date)
		require.NoError(t, err)
		require.NotEqual(t, time.Saturday, d.Weekday())
		require.NotEqual(t, time.Sunday, d.Weekday())
	}
}

func TestFetchProfileKnownSymbol(t *testing.T) {
	t.Parallel()

	p := New("", 0)
	raw, err := p.Fetch(t.Context(), provider.NewKey("googl", provider.KindProfile))
	require.NoError(t, err)

	var pr provider.Profile
	require.NoError(t, json.Unmarshal(raw, &pr))
	require.Equal(t, "GOOGL", pr.Symbol)
	require.Equal(t, "Alphabet Inc.", pr.Name)
	require.Equal(t, "Communication Services", pr.Sector)
}

func TestBaseForUnknownSymbolIsStable(t *testing.T) {
	t.Parallel()

	a := baseFor("ZZZQ")
	b := baseFor("ZZZQ")
	require.Equal(t, a, b)
	require.GreaterOrEqual(t, a.base, 20.0)
	require.Less(t, a.base, 1000.0)
	require.Equal(t, "ZZZQ Corp.", a.name)
}

func TestFetchRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	p := New("", 0)
	_, err := p.Fetch(t.Context(), provider.Key{Symbol: "AAPL", Kind: provider.Kind("news")})
	require.Error(t, err)
}
