package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewKeyNormalizesSymbol(t *testing.T) {
	t.Parallel()
	require.Equal(t, Key{Symbol: "AAPL", Kind: KindQuote}, NewKey(" aapl ", KindQuote))
	require.Equal(t, "quote:AAPL", NewKey("aapl", KindQuote).String())
	require.True(t, KindDaily.Valid())
	require.False(t, Kind("candles").Valid())
}

func TestFetchErrorClassification(t *testing.T) {
	t.Parallel()

	timeout := NewTimeout(context.DeadlineExceeded)
	require.True(t, IsTimeout(timeout))
	require.False(t, IsUpstream(timeout))
	require.ErrorIs(t, timeout, context.DeadlineExceeded)

	up := NewUpstream(404, errors.New("no data found"))
	require.True(t, IsUpstream(up))
	require.Equal(t, 404, UpstreamStatus(up))
	require.Equal(t, 0, UpstreamStatus(timeout))

	require.True(t, IsTransport(NewTransport(errors.New("connection refused"))))

	// classification must survive wrapping
	wrapped := fmt.Errorf("fetch AAPL: %w", up)
	require.True(t, IsUpstream(wrapped))
	var fe *FetchError
	require.ErrorAs(t, wrapped, &fe)
	require.Equal(t, ReasonUpstream, fe.Reason)
	require.Equal(t, 404, fe.Status)
}
