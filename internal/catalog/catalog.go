// Package catalog resolves the working set of instruments for a sync run
// from exchange market metadata. It is a pure filter: metadata in,
// instrument set out, no side effects.
package catalog

import (
	"sort"
	"strings"

	"candlescan/internal/errors"
	"candlescan/internal/exchange"
)

// MarketKind selects which dataset partition a sync run targets.
type MarketKind string

const (
	// MarketSpot targets spot instruments, identified as BASE/QUOTE.
	MarketSpot MarketKind = "spot"
	// MarketSwap targets perpetual swap instruments, identified as
	// BASE/QUOTE:SETTLE.
	MarketSwap MarketKind = "swap"
)

// ParseMarketKind parses a market kind string. An unsupported kind is a
// ConfigurationError, surfaced before any fetch begins.
func ParseMarketKind(s string) (MarketKind, error) {
	switch MarketKind(s) {
	case MarketSpot, MarketSwap:
		return MarketKind(s), nil
	}
	return "", errors.NewConfigurationError("market", "unsupported market kind %q (want %q or %q)", s, MarketSpot, MarketSwap)
}

// InstType maps the market kind to the exchange's instrument class used
// for metadata discovery.
func (k MarketKind) InstType() exchange.InstType {
	if k == MarketSwap {
		return exchange.InstTypeSwap
	}
	return exchange.InstTypeSpot
}

// Filter selects the markets matching kind and quote currency. Spot markets
// match on a /QUOTE symbol suffix; swap markets match contracts settling in
// the quote currency via the :SETTLE suffix. Inactive instruments are
// excluded. The result is sorted by symbol so runs enumerate instruments in
// a stable order.
func Filter(markets []exchange.Market, kind MarketKind, quote string) ([]exchange.Market, error) {
	var match func(m exchange.Market) bool
	switch kind {
	case MarketSpot:
		match = func(m exchange.Market) bool {
			return m.Spot && strings.HasSuffix(m.Symbol, "/"+quote)
		}
	case MarketSwap:
		match = func(m exchange.Market) bool {
			return m.Contract && m.Type == "swap" && strings.HasSuffix(m.Symbol, ":"+quote)
		}
	default:
		return nil, errors.NewConfigurationError("market", "unsupported market kind %q", string(kind))
	}

	selected := make([]exchange.Market, 0, len(markets))
	for _, m := range markets {
		if m.Active && match(m) {
			selected = append(selected, m)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Symbol < selected[j].Symbol })
	return selected, nil
}
