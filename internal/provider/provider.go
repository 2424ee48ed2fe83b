package provider

import (
	"context"
	"strings"
)

// Kind identifies which class of market datum a key addresses.
type Kind string

const (
	KindQuote   Kind = "quote"   // current price snapshot
	KindDaily   Kind = "daily"   // daily OHLCV history window
	KindProfile Kind = "profile" // company descriptive data
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindQuote, KindDaily, KindProfile:
		return true
	}
	return false
}

// Key identifies one cacheable market datum. Comparable and usable as a map key.
type Key struct {
	Symbol string
	Kind   Kind
}

// NewKey uppercases and trims the symbol so "aapl " and "AAPL" address the
// same entry.
func NewKey(symbol string, kind Kind) Key {
	return Key{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Kind: kind}
}

// String renders "kind:SYMBOL", the form used for flight and store keys.
func (k Key) String() string { return string(k.Kind) + ":" + k.Symbol }

// Provider fetches one market datum from an upstream source and returns it as
// a normalized JSON payload (Quote, History or Profile depending on the key's
// kind). Implementations enforce their own per-call timeout and never retry;
// retry policy belongs to the caller.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, key Key) ([]byte, error)
}

// FetchMode says who asked for a fetch: a blocking reader that wants the
// error fast, or a background refresher that records it and backs off.
type FetchMode int

const (
	ModeBlocking FetchMode = iota
	ModeBackground
)

func (m FetchMode) String() string {
	if m == ModeBackground {
		return "background"
	}
	return "blocking"
}
