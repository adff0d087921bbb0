package syncer

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"candlescan/internal/catalog"
	"candlescan/internal/errors"
	"candlescan/internal/exchange"
	"candlescan/internal/models"
	"candlescan/internal/store"
)

// Options configures a sync run.
type Options struct {
	// QuoteCurrency filters the instrument catalog (e.g. "USDT").
	QuoteCurrency string
	// Concurrency bounds the number of fetches in flight.
	Concurrency int
	// Pacing, when positive, spaces fetch starts across all workers as a
	// defensive measure against upstream rate limits.
	Pacing time.Duration
	// FetchLimit is the default look-back row count for new instruments.
	FetchLimit int
	// Location is the reference timezone candles are truncated in.
	Location *time.Location
	// VolumePolicy selects base or notional volume for the dataset.
	VolumePolicy VolumePolicy
}

// Report summarizes one partition sync run.
type Report struct {
	RunID       string
	Partition   string
	Instruments int
	Succeeded   int
	Failed      int
	Empty       int
	Rows        int
	Merged      bool
}

// Runner drives partition sync runs against one exchange and one store.
type Runner struct {
	adapter exchange.Adapter
	store   *store.CSVStore
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRunner creates a sync runner.
func NewRunner(adapter exchange.Adapter, st *store.CSVStore, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if opts.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Pacing), 1)
	}
	return &Runner{adapter: adapter, store: st, opts: opts, limiter: limiter, logger: logger}
}

// SyncPartition synchronizes one market-kind partition: resolve the
// instrument catalog, compute per-instrument start boundaries from the
// persisted dataset, fan out fetches, merge the results and atomically
// replace the partition file. Per-instrument failures are absorbed into the
// report; only partition-level failures (misconfiguration, dataset format,
// market discovery) return an error.
//
// The dataset is read once before fan-out begins and written once after all
// fetches are accounted for; no fetch ever holds it.
func (r *Runner) SyncPartition(ctx context.Context, kind catalog.MarketKind) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		Partition: string(kind),
	}
	logger := r.logger.With("run_id", report.RunID, "partition", kind)

	markets, err := r.adapter.LoadMarkets(ctx, kind.InstType())
	if err != nil {
		return nil, err
	}
	instruments, err := catalog.Filter(markets, kind, r.opts.QuoteCurrency)
	if err != nil {
		return nil, err
	}
	report.Instruments = len(instruments)
	logger.Info("resolved instrument catalog", "instruments", len(instruments), "quote", r.opts.QuoteCurrency)

	path := r.store.PartitionPath(string(kind))
	dataset, err := r.store.Load(path)
	if err != nil && !stderrors.Is(err, errors.ErrDatasetNotFound) {
		return nil, err
	}

	source := NewSource(r.adapter, r.opts.Location, r.opts.VolumePolicy, r.opts.FetchLimit, logger)

	batches, stats := FetchAll(ctx, instruments,
		func(instrument string) (models.Day, bool) {
			return ResolveStart(instrument, dataset)
		},
		source.Fetch,
		r.opts.Concurrency, r.limiter, logger)

	report.Succeeded = stats.Succeeded
	report.Failed = stats.Failed
	report.Empty = stats.Empty

	incoming := make([][]models.Candle, 0, len(batches))
	for _, b := range batches {
		incoming = append(incoming, b.Candles)
	}

	merged, changed := store.Merge(dataset, incoming...)
	report.Rows = len(merged)
	report.Merged = changed
	if !changed {
		logger.Info("nothing to merge, dataset unchanged", "rows", len(merged))
		return report, nil
	}

	if err := r.store.Save(path, merged); err != nil {
		return nil, err
	}
	logger.Info("partition synchronized",
		"rows", len(merged),
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"empty", stats.Empty)
	return report, nil
}
