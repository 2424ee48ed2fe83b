package yahoo_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/blob451/MapleTrade/internal/provider"
	yahoo "github.com/blob451/MapleTrade/internal/provider/yahoo"
)

const chartQuoteBody = `{
  "chart": {
    "result": [{
      "meta": {
        "currency": "USD",
        "symbol": "AAPL",
        "exchangeName": "NMS",
        "fullExchangeName": "NasdaqGS",
        "regularMarketPrice": 189.84,
        "regularMarketTime": 1717171200,
        "chartPreviousClose": 190.29
      },
      "timestamp": [1717171200],
      "indicators": {"quote": [{"open": [189.1], "high": [190.0], "low": [188.5], "close": [189.84], "volume": [51234567]}]}
    }],
    "error": null
  }
}`

const chartDailyBody = `{
  "chart": {
    "result": [{
      "meta": {"currency": "USD", "symbol": "AAPL", "exchangeName": "NMS"},
      "timestamp": [1717027200, 1717113600, 1717200000],
      "indicators": {
        "quote": [{
          "open": [189.1, null, 191.2],
          "high": [190.0, null, 192.4],
          "low": [188.5, null, 190.1],
          "close": [189.84, null, 191.96],
          "volume": [51234567, null, 49887766]
        }],
        "adjclose": [{"adjclose": [189.5, null, 191.6]}]
      }
    }],
    "error": null
  }
}`

const chartErrorBody = `{
  "chart": {
    "result": null,
    "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
  }
}`

func respondWith(body string) func(context.Context, *http.Request) (*http.Response, error) {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		}, nil
	}
}

func TestFetchQuote(t *testing.T) {
	t.Parallel()

	// Arrange: stub the chart endpoint
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "/v8/finance/chart/AAPL", req.URL.Path)
			require.Equal(t, "1d", req.URL.Query().Get("range"))
			require.Equal(t, "1d", req.URL.Query().Get("interval"))
			return respondWith(chartQuoteBody)(ctx, req)
		}).
		Times(1)

	p := yahoo.New(yahoo.Config{}, httpClient)

	// Act
	payload, err := p.Fetch(t.Context(), provider.NewKey("aapl", provider.KindQuote))
	require.NoError(t, err)

	// Assert: normalized quote with string prices
	var q provider.Quote
	require.NoError(t, json.Unmarshal(payload, &q))
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, "189.84", q.Price)
	require.Equal(t, "190.29", q.PreviousClose)
	require.Equal(t, "USD", q.Currency)
	require.Equal(t, "NasdaqGS", q.Exchange)
	require.Equal(t, "YahooFinance", q.Source)
	require.True(t, q.AsOf.Equal(time.Unix(1717171200, 0).UTC()))
}

func TestFetchDailySkipsEmptyRows(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			require.Equal(t, "/v8/finance/chart/AAPL", req.URL.Path)
			require.Equal(t, "3mo", req.URL.Query().Get("range"))
			require.Equal(t, "1d", req.URL.Query().Get("interval"))
			return respondWith(chartDailyBody)(ctx, req)
		}).
		Times(1)

	p := yahoo.New(yahoo.Config{}, httpClient)

	payload, err := p.Fetch(t.Context(), provider.NewKey("AAPL", provider.KindDaily))
	require.NoError(t, err)

	var h provider.History
	require.NoError(t, json.Unmarshal(payload, &h))
	require.Equal(t, "AAPL", h.Symbol)
	require.Equal(t, "USD", h.Currency)

	// the null middle row carries no close and must be dropped
	require.Len(t, h.Bars, 2)
	require.Equal(t, "2024-05-30", h.Bars[0].Date)
	require.Equal(t, "189.84", h.Bars[0].Close)
	require.Equal(t, "189.5", h.Bars[0].AdjClose)
	require.Equal(t, int64(51234567), h.Bars[0].Volume)
	require.Equal(t, "2024-06-01", h.Bars[1].Date)
	require.Equal(t, "191.96", h.Bars[1].Close)
}

func TestFetchQuoteEmbeddedError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(respondWith(chartErrorBody)).
		Times(1)

	p := yahoo.New(yahoo.Config{}, httpClient)

	_, err := p.Fetch(t.Context(), provider.NewKey("DELISTED", provider.KindQuote))
	require.True(t, provider.IsUpstream(err), "got: %v", err)
	require.ErrorContains(t, err, "delisted")
}
