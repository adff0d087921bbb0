// Package syncer implements the incremental synchronization engine: the
// watermark resolver that decides how far back to re-fetch per instrument,
// the source adapter that normalizes exchange rows into canonical candles,
// the bounded-concurrency fetch scheduler, and the per-partition run
// orchestration that ties them to the merge-dedup store.
package syncer

import (
	"candlescan/internal/models"
	"candlescan/internal/store"
)

// CushionDays is the look-back cushion: this many of the most recent
// persisted days are re-fetched on every run to absorb late revisions, most
// importantly a latest day that was first fetched mid-day with incomplete
// closing data. Anything older is immutable history and never refetched.
const CushionDays = 2

// ResolveStart computes the fetch start boundary for an instrument. For an
// instrument with no persisted records it returns ok=false, meaning the
// caller should fetch the default look-back window. Otherwise it returns
// the maximum persisted day minus the cushion. Pure function: no I/O,
// deterministic given its inputs.
func ResolveStart(instrument string, dataset store.Dataset) (models.Day, bool) {
	max, found := dataset.MaxDay(instrument)
	if !found {
		return models.Day{}, false
	}
	return max.AddDays(-CushionDays), true
}
