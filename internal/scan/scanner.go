// Package scan implements the double-bullish signal scanner: it reports
// instruments whose two most recent daily candles both closed above their
// open, ranked by the latest candle's volume.
package scan

import (
	"sort"

	"github.com/shopspring/decimal"

	"candlescan/internal/store"
)

// DefaultTopN is the default ranked-report length.
const DefaultTopN = 10

// Match is one instrument satisfying the signal, with the volume of its
// latest candle used for ranking.
type Match struct {
	Instrument string
	Volume     decimal.Decimal
}

// Scan walks the dataset grouped by instrument and matches every
// instrument whose two chronologically latest candles are both bullish. An
// instrument with fewer than two days of history never matches, and a flat
// candle satisfies nothing.
//
// Grouping leans on the dataset's (instrument, day) sort invariant: each
// instrument's records form one contiguous run and the latest two candles
// are the run's final two elements. No re-sort, no fetch, no mutation.
//
// Matches are ranked by latest volume descending; equal volumes keep their
// encounter order so the ranking is deterministic. The ranked slice is
// truncated to topN, while the returned total always reflects the full
// match count.
func Scan(dataset store.Dataset, topN int) ([]Match, int) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	var matches []Match
	for start := 0; start < len(dataset); {
		end := start + 1
		for end < len(dataset) && dataset[end].Instrument == dataset[start].Instrument {
			end++
		}
		if end-start >= 2 {
			prev, last := &dataset[end-2], &dataset[end-1]
			if prev.IsBullish() && last.IsBullish() {
				matches = append(matches, Match{Instrument: last.Instrument, Volume: last.Volume})
			}
		}
		start = end
	}

	total := len(matches)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Volume.Cmp(matches[j].Volume) > 0
	})
	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches, total
}
