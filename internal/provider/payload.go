package provider

import "time"

// Quote is the normalized current-price payload all providers emit for
// KindQuote. Prices stay strings end to end to avoid float rounding.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         string    `json:"price"`
	PreviousClose string    `json:"previous_close,omitempty"`
	Currency      string    `json:"currency"`
	Exchange      string    `json:"exchange,omitempty"`
	Source        string    `json:"source"`
	AsOf          time.Time `json:"as_of"`
}

// Bar is one daily OHLCV row inside a History payload.
type Bar struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	AdjClose string `json:"adj_close,omitempty"`
	Volume   int64  `json:"volume"`
}

// History is the normalized daily-history payload for KindDaily.
type History struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	Source   string `json:"source"`
	Bars     []Bar  `json:"bars"`
}

// Profile is the normalized company-profile payload for KindProfile.
type Profile struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Sector    string    `json:"sector,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	MarketCap string    `json:"market_cap,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Source    string    `json:"source"`
	AsOf      time.Time `json:"as_of"`
}
