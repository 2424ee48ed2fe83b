package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/blob451/MapleTrade/internal/provider"
)

type summaryResponse struct {
	QuoteSummary struct {
		Result []summaryResult `json:"result"`
		Error  *apiError       `json:"error"`
	} `json:"quoteSummary"`
}

type summaryResult struct {
	AssetProfile struct {
		Sector              string `json:"sector"`
		Industry            string `json:"industry"`
		LongBusinessSummary string `json:"longBusinessSummary"`
	} `json:"assetProfile"`
	Price struct {
		Symbol       string  `json:"symbol"`
		LongName     string  `json:"longName"`
		ShortName    string  `json:"shortName"`
		Currency     string  `json:"currency"`
		ExchangeName string  `json:"exchangeName"`
		MarketCap    wrapped `json:"marketCap"`
	} `json:"price"`
}

// wrapped is Yahoo's {"raw": n, "fmt": "..."} number envelope.
type wrapped struct {
	Raw json.Number `json:"raw"`
	Fmt string      `json:"fmt"`
}

func (p *Provider) fetchProfile(ctx context.Context, symbol string) ([]byte, error) {
	q := url.Values{"modules": {"assetProfile,price"}}
	var sr summaryResponse
	if err := p.getJSON(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), q, &sr); err != nil {
		return nil, err
	}
	if e := sr.QuoteSummary.Error; e != nil {
		return nil, provider.NewUpstream(0, e)
	}
	if len(sr.QuoteSummary.Result) == 0 {
		return nil, provider.NewUpstream(0, errors.New("empty quoteSummary result"))
	}
	res := sr.QuoteSummary.Result[0]

	name := res.Price.LongName
	if name == "" {
		name = res.Price.ShortName
	}
	sym := res.Price.Symbol
	if sym == "" {
		sym = symbol
	}
	return json.Marshal(provider.Profile{
		Symbol:    sym,
		Name:      name,
		Exchange:  res.Price.ExchangeName,
		Currency:  res.Price.Currency,
		Sector:    res.AssetProfile.Sector,
		Industry:  res.AssetProfile.Industry,
		MarketCap: res.Price.MarketCap.Raw.String(),
		Summary:   res.AssetProfile.LongBusinessSummary,
		Source:    p.cfg.Name,
		AsOf:      time.Now().UTC(),
	})
}
