package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/blob451/MapleTrade/internal/provider"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency           string      `json:"currency"`
		Symbol             string      `json:"symbol"`
		ExchangeName       string      `json:"exchangeName"`
		FullExchangeName   string      `json:"fullExchangeName"`
		RegularMarketPrice json.Number `json:"regularMarketPrice"`
		RegularMarketTime  int64       `json:"regularMarketTime"`
		PreviousClose      json.Number `json:"previousClose"`
		ChartPreviousClose json.Number `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []json.Number `json:"open"`
			High   []json.Number `json:"high"`
			Low    []json.Number `json:"low"`
			Close  []json.Number `json:"close"`
			Volume []json.Number `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []json.Number `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

func (cr *chartResponse) firstResult() (chartResult, error) {
	if e := cr.Chart.Error; e != nil {
		return chartResult{}, provider.NewUpstream(0, e)
	}
	if len(cr.Chart.Result) == 0 {
		return chartResult{}, provider.NewUpstream(0, errors.New("empty chart result"))
	}
	return cr.Chart.Result[0], nil
}

func (p *Provider) fetchQuote(ctx context.Context, symbol string) ([]byte, error) {
	q := url.Values{"range": {"1d"}, "interval": {"1d"}}
	var cr chartResponse
	if err := p.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q, &cr); err != nil {
		return nil, err
	}
	res, err := cr.firstResult()
	if err != nil {
		return nil, err
	}
	m := res.Meta
	if m.RegularMarketPrice.String() == "" {
		return nil, provider.NewUpstream(0, errors.New("no market price in chart meta"))
	}
	sym := m.Symbol
	if sym == "" {
		sym = symbol
	}
	asOf := time.Now().UTC()
	if m.RegularMarketTime > 0 {
		asOf = time.Unix(m.RegularMarketTime, 0).UTC()
	}
	prev := m.PreviousClose.String()
	if prev == "" {
		prev = m.ChartPreviousClose.String()
	}
	exch := m.FullExchangeName
	if exch == "" {
		exch = m.ExchangeName
	}
	return json.Marshal(provider.Quote{
		Symbol:        sym,
		Price:         m.RegularMarketPrice.String(),
		PreviousClose: prev,
		Currency:      m.Currency,
		Exchange:      exch,
		Source:        p.cfg.Name,
		AsOf:          asOf,
	})
}

func (p *Provider) fetchDaily(ctx context.Context, symbol string) ([]byte, error) {
	q := url.Values{"range": {p.cfg.DailyRange}, "interval": {"1d"}}
	var cr chartResponse
	if err := p.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q, &cr); err != nil {
		return nil, err
	}
	res, err := cr.firstResult()
	if err != nil {
		return nil, err
	}
	if len(res.Indicators.Quote) == 0 {
		return nil, provider.NewUpstream(0, errors.New("no quote indicators"))
	}
	ohlcv := res.Indicators.Quote[0]
	var adj []json.Number
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]provider.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		closePx := at(ohlcv.Close, i)
		if closePx == "" {
			// rows with no close are filler for holidays/halts, skip
			continue
		}
		vol, _ := numAt(ohlcv.Volume, i).Int64()
		bars = append(bars, provider.Bar{
			Date:     time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Open:     at(ohlcv.Open, i),
			High:     at(ohlcv.High, i),
			Low:      at(ohlcv.Low, i),
			Close:    closePx,
			AdjClose: at(adj, i),
			Volume:   vol,
		})
	}
	if len(bars) == 0 {
		return nil, provider.NewUpstream(0, errors.New("no usable bars"))
	}
	sym := res.Meta.Symbol
	if sym == "" {
		sym = symbol
	}
	return json.Marshal(provider.History{
		Symbol:   sym,
		Currency: res.Meta.Currency,
		Source:   p.cfg.Name,
		Bars:     bars,
	})
}

func numAt(xs []json.Number, i int) json.Number {
	if i < 0 || i >= len(xs) {
		return ""
	}
	return xs[i]
}

func at(xs []json.Number, i int) string { return numAt(xs, i).String() }
