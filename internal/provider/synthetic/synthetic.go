package synthetic

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"time"

	"github.com/blob451/MapleTrade/internal/provider"
)

// stock is the per-symbol baseline the generator walks around.
type stock struct {
	name   string
	sector string
	base   float64
	vol    float64
}

var knownStocks = map[string]stock{
	"AAPL":  {"Apple Inc.", "Technology", 180, 0.35},
	"MSFT":  {"Microsoft Corporation", "Technology", 420, 0.28},
	"GOOGL": {"Alphabet Inc.", "Communication Services", 170, 0.32},
	"AMZN":  {"Amazon.com Inc.", "Consumer Discretionary", 185, 0.38},
	"TSLA":  {"Tesla Inc.", "Consumer Discretionary", 250, 0.55},
	"SPY":   {"SPDR S&P 500 ETF", "ETF", 550, 0.18},
	"XLK":   {"Technology Select Sector SPDR", "ETF", 195, 0.22},
}

// Provider generates plausible offline market data. Useful when the real
// upstream is rate limited or unreachable, and for wiring tests. Unknown
// symbols get a stable hash-derived baseline instead of failing.
type Provider struct {
	name string
	days int
}

func New(name string, days int) *Provider {
	if name == "" {
		name = "Synthetic"
	}
	if days <= 0 {
		days = 30
	}
	return &Provider{name: name, days: days}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Fetch(_ context.Context, key provider.Key) ([]byte, error) {
	s := baseFor(key.Symbol)
	now := time.Now().UTC()
	switch key.Kind {
	case provider.KindQuote:
		px := s.base * (1 + (rand.Float64()*0.04 - 0.02))
		return json.Marshal(provider.Quote{
			Symbol:        key.Symbol,
			Price:         formatPrice(px),
			PreviousClose: formatPrice(s.base),
			Currency:      "USD",
			Exchange:      "SYNTH",
			Source:        p.name,
			AsOf:          now,
		})
	case provider.KindDaily:
		return json.Marshal(provider.History{
			Symbol:   key.Symbol,
			Currency: "USD",
			Source:   p.name,
			Bars:     p.walk(s, now),
		})
	case provider.KindProfile:
		return json.Marshal(provider.Profile{
			Symbol:    key.Symbol,
			Name:      s.name,
			Exchange:  "SYNTH",
			Currency:  "USD",
			Sector:    s.sector,
			MarketCap: strconv.FormatFloat(s.base*1.2e9, 'f', 0, 64),
			Summary:   fmt.Sprintf("%s operates in the %s sector.", s.name, s.sector),
			Source:    p.name,
			AsOf:      now,
		})
	}
	return nil, fmt.Errorf("synthetic: unsupported kind %q", key.Kind)
}

// walk produces a daily random walk ending near the baseline, weekends
// skipped.
func (p *Provider) walk(s stock, now time.Time) []provider.Bar {
	bars := make([]provider.Bar, 0, p.days)
	px := s.base
	for i := p.days - 1; i >= 0; i-- {
		d := now.AddDate(0, 0, -i)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		ret := (rand.Float64() - 0.5) * s.vol * 0.125
		open := px
		px = px * (1 + ret)
		high := maxf(open, px) * (1 + rand.Float64()*0.005)
		low := minf(open, px) * (1 - rand.Float64()*0.005)
		bars = append(bars, provider.Bar{
			Date:     d.Format("2006-01-02"),
			Open:     formatPrice(open),
			High:     formatPrice(high),
			Low:      formatPrice(low),
			Close:    formatPrice(px),
			AdjClose: formatPrice(px),
			Volume:   int64(5_000_000 + rand.Intn(45_000_000)),
		})
	}
	return bars
}

// baseFor resolves the table entry for known symbols and derives a stable
// baseline from the symbol hash for everything else.
func baseFor(symbol string) stock {
	if s, ok := knownStocks[symbol]; ok {
		return s
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	base := 20 + float64(h.Sum32()%98000)/100
	return stock{name: symbol + " Corp.", sector: "Diversified", base: base, vol: 0.3}
}

func formatPrice(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
