package syncer

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"candlescan/internal/exchange"
	"candlescan/internal/models"
)

// Batch is the successful fetch result for one instrument.
type Batch struct {
	Instrument string
	Candles    []models.Candle
}

// FetchStats counts per-instrument outcomes of one fan-out.
type FetchStats struct {
	Succeeded int
	Failed    int
	Empty     int
}

// ResolveFunc computes the fetch start boundary for an instrument;
// ok=false means no persisted history (fetch the default window).
type ResolveFunc func(instrument string) (models.Day, bool)

// FetchFunc fetches normalized candles for one market from an optional
// start boundary.
type FetchFunc func(ctx context.Context, market exchange.Market, start *models.Day) ([]models.Candle, error)

// FetchAll fans fetches out across all markets with at most concurrency in
// flight. Each instrument is fault-isolated: a failed fetch is logged,
// counted, and skipped without affecting siblings. An optional shared
// limiter paces fetch starts across workers. Batch order is the completion
// order and carries no guarantee; the merge step tolerates any order.
func FetchAll(ctx context.Context, markets []exchange.Market, resolve ResolveFunc, fetch FetchFunc, concurrency int, limiter *rate.Limiter, logger *slog.Logger) ([]Batch, FetchStats) {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		mu      sync.Mutex
		batches []Batch
		stats   FetchStats
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, market := range markets {
		market := market
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					mu.Lock()
					stats.Failed++
					mu.Unlock()
					return nil
				}
			}

			var startPtr *models.Day
			if start, ok := resolve(market.Symbol); ok {
				startPtr = &start
				logger.Debug("updating instrument from watermark", "instrument", market.Symbol, "start", start)
			} else {
				logger.Debug("new instrument, fetching default window", "instrument", market.Symbol)
			}

			candles, err := fetch(ctx, market, startPtr)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Failed++
				logger.Warn("instrument fetch failed, skipping", "instrument", market.Symbol, "error", err)
			case len(candles) == 0:
				stats.Empty++
				logger.Debug("no candles returned", "instrument", market.Symbol)
			default:
				stats.Succeeded++
				batches = append(batches, Batch{Instrument: market.Symbol, Candles: candles})
			}
			return nil
		})
	}

	// Workers never return errors; failures are data, not control flow.
	_ = g.Wait()

	return batches, stats
}
