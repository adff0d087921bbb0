// Package store owns the persisted candle dataset: the in-memory ordered
// collection, the merge-dedup operation that is its only mutation path, and
// the per-partition CSV files it is persisted to.
package store

import (
	"sort"

	"candlescan/internal/models"
)

// Dataset is an ordered collection of candle records. The invariant every
// consumer relies on: records are sorted by (instrument ascending, day
// ascending) and at most one record exists per (instrument, day).
type Dataset []models.Candle

// MaxDay returns the latest persisted day for an instrument, or false if
// the instrument has no records.
func (d Dataset) MaxDay(instrument string) (models.Day, bool) {
	var max models.Day
	found := false
	for i := range d {
		if d[i].Instrument != instrument {
			continue
		}
		if !found || d[i].Day.After(max) {
			max = d[i].Day
			found = true
		}
	}
	return max, found
}

// Instruments returns the distinct instruments present in the dataset, in
// dataset order.
func (d Dataset) Instruments() []string {
	out := make([]string, 0)
	for i := range d {
		if i == 0 || d[i].Instrument != d[i-1].Instrument {
			out = append(out, d[i].Instrument)
		}
	}
	return out
}

// sortDataset establishes the (instrument, day) ascending order.
func sortDataset(d Dataset) {
	sort.Slice(d, func(i, j int) bool {
		if d[i].Instrument != d[j].Instrument {
			return d[i].Instrument < d[j].Instrument
		}
		return d[i].Day.Before(d[j].Day)
	})
}

// Merge combines freshly fetched batches into the existing dataset,
// deduplicating on (instrument, day). An incoming record always replaces a
// persisted record with the same key; that is how the cushion-window
// re-fetch overwrites stale same-day rows. If a batch set carries more than
// one record for the same key, the later one in iteration order wins.
//
// The returned dataset is sorted by (instrument, day) ascending. The second
// return value is false when every batch was empty; callers must then leave
// the persisted dataset untouched instead of rewriting identical state.
func Merge(existing Dataset, batches ...[]models.Candle) (Dataset, bool) {
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total == 0 {
		return existing, false
	}

	byKey := make(map[models.Key]models.Candle, len(existing)+total)
	for i := range existing {
		byKey[existing[i].Key()] = existing[i]
	}
	for _, batch := range batches {
		for i := range batch {
			byKey[batch[i].Key()] = batch[i]
		}
	}

	merged := make(Dataset, 0, len(byKey))
	for _, c := range byKey {
		merged = append(merged, c)
	}
	sortDataset(merged)
	return merged, true
}
