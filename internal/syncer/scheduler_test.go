package syncer

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlescan/internal/errors"
	"candlescan/internal/exchange"
	"candlescan/internal/models"
)

func markets(symbols ...string) []exchange.Market {
	out := make([]exchange.Market, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, exchange.Market{Symbol: s, InstID: s, Spot: true, Type: "spot", Active: true})
	}
	return out
}

func noResolve(string) (models.Day, bool) { return models.Day{}, false }

func oneCandle(instrument string) []models.Candle {
	return []models.Candle{storedCandle(instrument, models.NewDay(2024, time.March, 1))}
}

func TestFetchAllFaultIsolation(t *testing.T) {
	fetch := func(ctx context.Context, m exchange.Market, start *models.Day) ([]models.Candle, error) {
		if m.Symbol == "BAD/USDT" {
			return nil, errors.NewFetchError(m.Symbol, stderrors.New("boom"))
		}
		return oneCandle(m.Symbol), nil
	}

	batches, stats := FetchAll(context.Background(),
		markets("A/USDT", "BAD/USDT", "B/USDT", "C/USDT"),
		noResolve, fetch, 2, nil, nil)

	assert.Equal(t, 3, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Empty)

	got := make(map[string]bool, len(batches))
	for _, b := range batches {
		got[b.Instrument] = true
	}
	assert.Equal(t, map[string]bool{"A/USDT": true, "B/USDT": true, "C/USDT": true}, got)
}

func TestFetchAllCountsEmptyResults(t *testing.T) {
	fetch := func(ctx context.Context, m exchange.Market, start *models.Day) ([]models.Candle, error) {
		return nil, nil
	}

	batches, stats := FetchAll(context.Background(), markets("A/USDT", "B/USDT"), noResolve, fetch, 2, nil, nil)
	assert.Empty(t, batches)
	assert.Equal(t, FetchStats{Empty: 2}, stats)
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	const concurrency = 3

	var inFlight, maxInFlight int64
	fetch := func(ctx context.Context, m exchange.Market, start *models.Day) ([]models.Candle, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			max := atomic.LoadInt64(&maxInFlight)
			if cur <= max || atomic.CompareAndSwapInt64(&maxInFlight, max, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return oneCandle(m.Symbol), nil
	}

	syms := make([]string, 20)
	for i := range syms {
		syms[i] = string(rune('A'+i)) + "/USDT"
	}
	_, stats := FetchAll(context.Background(), markets(syms...), noResolve, fetch, concurrency, nil, nil)

	assert.Equal(t, 20, stats.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(concurrency))
}

func TestFetchAllPassesResolvedStart(t *testing.T) {
	watermark := models.NewDay(2024, time.March, 8)
	resolve := func(instrument string) (models.Day, bool) {
		if instrument == "KNOWN/USDT" {
			return watermark, true
		}
		return models.Day{}, false
	}

	var mu sync.Mutex
	starts := make(map[string]*models.Day)
	fetch := func(ctx context.Context, m exchange.Market, start *models.Day) ([]models.Candle, error) {
		mu.Lock()
		starts[m.Symbol] = start
		mu.Unlock()
		return oneCandle(m.Symbol), nil
	}

	_, stats := FetchAll(context.Background(), markets("KNOWN/USDT", "NEW/USDT"), resolve, fetch, 2, nil, nil)
	require.Equal(t, 2, stats.Succeeded)

	require.NotNil(t, starts["KNOWN/USDT"])
	assert.Equal(t, watermark, *starts["KNOWN/USDT"])
	assert.Nil(t, starts["NEW/USDT"])
}
