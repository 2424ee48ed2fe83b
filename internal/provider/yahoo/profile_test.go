package yahoo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/blob451/MapleTrade/internal/provider"
	yahoo "github.com/blob451/MapleTrade/internal/provider/yahoo"
)

const summaryBody = `{
  "quoteSummary": {
    "result": [{
      "assetProfile": {
        "sector": "Technology",
        "industry": "Consumer Electronics",
        "longBusinessSummary": "Apple Inc. designs, manufactures, and markets smartphones."
      },
      "price": {
        "symbol": "AAPL",
        "longName": "Apple Inc.",
        "shortName": "Apple",
        "currency": "USD",
        "exchangeName": "NasdaqGS",
        "marketCap": {"raw": 2910000000000, "fmt": "2.91T"}
      }
    }],
    "error": null
  }
}`

func TestFetchProfile(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			require.Equal(t, "/v10/finance/quoteSummary/AAPL", req.URL.Path)
			require.Equal(t, "assetProfile,price", req.URL.Query().Get("modules"))
			return respondWith(summaryBody)(ctx, req)
		}).
		Times(1)

	p := yahoo.New(yahoo.Config{}, httpClient)

	payload, err := p.Fetch(t.Context(), provider.NewKey("AAPL", provider.KindProfile))
	require.NoError(t, err)

	var pr provider.Profile
	require.NoError(t, json.Unmarshal(payload, &pr))
	require.Equal(t, "AAPL", pr.Symbol)
	require.Equal(t, "Apple Inc.", pr.Name)
	require.Equal(t, "Technology", pr.Sector)
	require.Equal(t, "Consumer Electronics", pr.Industry)
	require.Equal(t, "2910000000000", pr.MarketCap)
	require.Equal(t, "NasdaqGS", pr.Exchange)
	require.Equal(t, "YahooFinance", pr.Source)
	require.False(t, pr.AsOf.IsZero())
}
