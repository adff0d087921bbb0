// Package exchange defines the interfaces the sync pipeline needs from an
// exchange (market metadata discovery and daily candle retrieval) and an
// OKX implementation of them.
//
// The interfaces are deliberately small: the rest of the pipeline only ever
// needs to enumerate markets and fetch raw daily candles. Normalization into
// canonical candle records happens in the candle source adapter, not here.
package exchange

import (
	"context"
	"time"
)

// InstType is the exchange-side instrument class used for market discovery.
type InstType string

const (
	// InstTypeSpot selects spot markets.
	InstTypeSpot InstType = "SPOT"
	// InstTypeSwap selects perpetual swap markets.
	InstTypeSwap InstType = "SWAP"
)

// Market describes one tradable instrument from exchange metadata.
type Market struct {
	// Symbol is the unified identifier used as the dataset instrument key:
	// BASE/QUOTE for spot, BASE/QUOTE:SETTLE for perpetual swaps.
	Symbol string

	// InstID is the exchange-native identifier (e.g. "BTC-USDT",
	// "BTC-USDT-SWAP") used on API calls.
	InstID string

	// Base, Quote and Settle are the currency components. Settle is empty
	// for spot markets.
	Base   string
	Quote  string
	Settle string

	// Spot and Contract classify the market; Type is the exchange's
	// lower-cased instrument class ("spot", "swap").
	Spot     bool
	Contract bool
	Type     string

	// Active reports whether the instrument is live for trading.
	Active bool
}

// RawCandle is one row as delivered by the exchange: an exact timestamp and
// undecoded decimal strings. Values are passed through untouched; parsing
// and day truncation are the source adapter's job.
type RawCandle struct {
	Timestamp time.Time
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
}

// MarketProvider enumerates tradable instruments from exchange metadata.
type MarketProvider interface {
	// LoadMarkets returns all markets of the given instrument class.
	// Implementations should cache results to avoid hammering the
	// metadata endpoint on every partition sync.
	LoadMarkets(ctx context.Context, instType InstType) ([]Market, error)
}

// CandleFetcher retrieves daily OHLCV rows for one instrument.
type CandleFetcher interface {
	// FetchDailyCandles returns daily candles for instID in chronological
	// order (oldest first). sinceMillis, when positive, requests rows on
	// or after that epoch-millisecond boundary; otherwise the most recent
	// limit rows are returned. An empty window yields an empty slice, not
	// an error.
	FetchDailyCandles(ctx context.Context, instID string, sinceMillis int64, limit int) ([]RawCandle, error)
}

// Adapter combines the capabilities the sync pipeline needs from an
// exchange implementation.
type Adapter interface {
	MarketProvider
	CandleFetcher
}
