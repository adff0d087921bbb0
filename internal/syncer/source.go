package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"candlescan/internal/errors"
	"candlescan/internal/exchange"
	"candlescan/internal/models"
)

// VolumePolicy selects the volume semantics of a dataset. The policy is
// fixed per dataset at creation time; mixing policies within one file
// corrupts the ranking.
type VolumePolicy string

const (
	// VolumeBase stores raw base-asset volume as delivered by the source.
	VolumeBase VolumePolicy = "base"
	// VolumeNotional stores volume × close, i.e. traded volume in quote
	// currency terms.
	VolumeNotional VolumePolicy = "notional"
)

// ParseVolumePolicy parses a volume policy string.
func ParseVolumePolicy(s string) (VolumePolicy, error) {
	switch VolumePolicy(s) {
	case VolumeBase, VolumeNotional:
		return VolumePolicy(s), nil
	}
	return "", errors.NewConfigurationError("volume_policy", "unsupported volume policy %q (want %q or %q)", s, VolumeBase, VolumeNotional)
}

// Source adapts the exchange fetch capability into canonical candle
// records: timestamps truncated to calendar days in one fixed reference
// location, volume transformed per the dataset policy, direction derived
// from open and close.
type Source struct {
	fetcher exchange.CandleFetcher
	loc     *time.Location
	policy  VolumePolicy
	limit   int
	logger  *slog.Logger
}

// NewSource creates a source adapter. limit is the default look-back row
// count used when no start boundary is given (a new instrument).
func NewSource(fetcher exchange.CandleFetcher, loc *time.Location, policy VolumePolicy, limit int, logger *slog.Logger) *Source {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{fetcher: fetcher, loc: loc, policy: policy, limit: limit, logger: logger}
}

// Fetch retrieves and normalizes daily candles for one market. A nil start
// requests the default look-back window. Zero rows is an empty slice, not
// an error. Any failure from the underlying fetch capability is converted
// to a FetchError tagged with the market's unified symbol, a recoverable
// per-instrument condition that must not abort sibling fetches.
func (s *Source) Fetch(ctx context.Context, market exchange.Market, start *models.Day) ([]models.Candle, error) {
	var sinceMillis int64
	if start != nil {
		sinceMillis = start.EpochMillis(s.loc)
	}

	rows, err := s.fetcher.FetchDailyCandles(ctx, market.InstID, sinceMillis, s.limit)
	if err != nil {
		return nil, errors.NewFetchError(market.Symbol, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := s.normalize(market.Symbol, row)
		if err != nil {
			s.logger.Warn("skipping malformed candle row",
				"instrument", market.Symbol,
				"timestamp", row.Timestamp,
				"error", err)
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// normalize converts one raw exchange row into a canonical candle record.
func (s *Source) normalize(instrument string, row exchange.RawCandle) (models.Candle, error) {
	var values [5]decimal.Decimal
	for i, raw := range []string{row.Open, row.High, row.Low, row.Close, row.Volume} {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return models.Candle{}, fmt.Errorf("invalid decimal %q: %w", raw, err)
		}
		values[i] = v
	}
	open, high, low, close, volume := values[0], values[1], values[2], values[3], values[4]

	if s.policy == VolumeNotional {
		volume = volume.Mul(close)
	}

	candle := models.Candle{
		Day:        models.DayOf(row.Timestamp, s.loc),
		Instrument: instrument,
		Open:       open,
		High:       high,
		Low:        low,
		Close:      close,
		Volume:     volume,
		Direction:  models.DirectionOf(open, close),
	}
	if err := candle.Validate(); err != nil {
		return models.Candle{}, err
	}
	return candle, nil
}
