package syncer

import (
	"context"
	stderrors "errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlescan/internal/catalog"
	"candlescan/internal/exchange"
	"candlescan/internal/store"
)

// stubAdapter is an in-memory exchange: fixed markets, canned candle rows
// per instrument, optional per-instrument failures. It records the since
// parameter of every fetch.
type stubAdapter struct {
	mu       sync.Mutex
	markets  []exchange.Market
	rows     map[string][]exchange.RawCandle
	failures map[string]error
	since    map[string][]int64
}

func newStubAdapter(markets ...exchange.Market) *stubAdapter {
	return &stubAdapter{
		markets:  markets,
		rows:     make(map[string][]exchange.RawCandle),
		failures: make(map[string]error),
		since:    make(map[string][]int64),
	}
}

func (s *stubAdapter) LoadMarkets(ctx context.Context, instType exchange.InstType) ([]exchange.Market, error) {
	return s.markets, nil
}

func (s *stubAdapter) FetchDailyCandles(ctx context.Context, instID string, sinceMillis int64, limit int) ([]exchange.RawCandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.since[instID] = append(s.since[instID], sinceMillis)
	if err := s.failures[instID]; err != nil {
		return nil, err
	}
	rows := s.rows[instID]
	if sinceMillis > 0 {
		filtered := make([]exchange.RawCandle, 0, len(rows))
		for _, r := range rows {
			if r.Timestamp.UnixMilli() >= sinceMillis {
				filtered = append(filtered, r)
			}
		}
		return filtered, nil
	}
	return rows, nil
}

func (s *stubAdapter) setDays(instID string, closes ...string) {
	rows := make([]exchange.RawCandle, 0, len(closes))
	for i, close := range closes {
		rows = append(rows, exchange.RawCandle{
			Timestamp: time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC),
			Open:      "100",
			High:      "120",
			Low:       "80",
			Close:     close,
			Volume:    strconv.Itoa(10 * (i + 1)),
		})
	}
	s.rows[instID] = rows
}

func spotMarket(base string) exchange.Market {
	return exchange.Market{
		Symbol: base + "/USDT",
		InstID: base + "-USDT",
		Base:   base,
		Quote:  "USDT",
		Spot:   true,
		Type:   "spot",
		Active: true,
	}
}

func newTestRunner(t *testing.T, adapter *stubAdapter) (*Runner, *store.CSVStore) {
	t.Helper()
	st, err := store.NewCSVStore(t.TempDir(), nil)
	require.NoError(t, err)
	runner := NewRunner(adapter, st, Options{
		QuoteCurrency: "USDT",
		Concurrency:   2,
		FetchLimit:    30,
		Location:      time.UTC,
		VolumePolicy:  VolumeBase,
	}, nil)
	return runner, st
}

func TestSyncPartitionFirstRun(t *testing.T) {
	adapter := newStubAdapter(spotMarket("BTC"), spotMarket("ETH"))
	adapter.setDays("BTC-USDT", "105", "110", "90")
	adapter.setDays("ETH-USDT", "101", "102")
	runner, st := newTestRunner(t, adapter)

	report, err := runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Instruments)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.True(t, report.Merged)
	assert.Equal(t, 5, report.Rows)
	assert.NotEmpty(t, report.RunID)

	ds, err := st.Load(st.PartitionPath("spot"))
	require.NoError(t, err)
	assert.Len(t, ds, 5)

	// First run: no watermark, full default window requested.
	assert.Equal(t, []int64{0}, adapter.since["BTC-USDT"])
}

func TestSyncPartitionCushionRefetch(t *testing.T) {
	adapter := newStubAdapter(spotMarket("BTC"))
	adapter.setDays("BTC-USDT", "105", "110", "90", "95", "130")
	runner, _ := newTestRunner(t, adapter)

	_, err := runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)

	// Second run: the start boundary is the max persisted day (Mar 5)
	// minus the 2-day cushion.
	_, err = runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)

	since := adapter.since["BTC-USDT"]
	require.Len(t, since, 2)
	wantStart := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, wantStart, since[1])
}

func TestSyncPartitionIdempotent(t *testing.T) {
	adapter := newStubAdapter(spotMarket("BTC"), spotMarket("ETH"))
	adapter.setDays("BTC-USDT", "105", "110", "90")
	adapter.setDays("ETH-USDT", "101", "102")
	runner, st := newTestRunner(t, adapter)

	_, err := runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)
	first, err := os.ReadFile(st.PartitionPath("spot"))
	require.NoError(t, err)

	_, err = runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)
	second, err := os.ReadFile(st.PartitionPath("spot"))
	require.NoError(t, err)

	// No new upstream data: the persisted dataset is byte-identical.
	assert.Equal(t, first, second)
}

func TestSyncPartitionFaultIsolation(t *testing.T) {
	adapter := newStubAdapter(spotMarket("BTC"), spotMarket("ETH"), spotMarket("XRP"))
	adapter.setDays("BTC-USDT", "105")
	adapter.setDays("XRP-USDT", "101")
	adapter.failures["ETH-USDT"] = stderrors.New("503 service unavailable")
	runner, st := newTestRunner(t, adapter)

	report, err := runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	ds, err := st.Load(st.PartitionPath("spot"))
	require.NoError(t, err)
	instruments := ds.Instruments()
	assert.Equal(t, []string{"BTC/USDT", "XRP/USDT"}, instruments)
}

func TestSyncPartitionEmptyFetchesLeaveDatasetUntouched(t *testing.T) {
	adapter := newStubAdapter(spotMarket("BTC"))
	adapter.setDays("BTC-USDT", "105")
	runner, st := newTestRunner(t, adapter)

	_, err := runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)
	path := st.PartitionPath("spot")
	before, err := os.Stat(path)
	require.NoError(t, err)

	// All fetches now return zero rows.
	adapter.rows["BTC-USDT"] = nil
	report, err := runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)

	assert.False(t, report.Merged)
	assert.Equal(t, 1, report.Empty)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestSyncPartitionRevisionOverwrites(t *testing.T) {
	adapter := newStubAdapter(spotMarket("BTC"))
	adapter.setDays("BTC-USDT", "105", "90")
	runner, st := newTestRunner(t, adapter)

	_, err := runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)

	// The latest day gets revised upstream; the cushion re-fetch must
	// overwrite the stale row.
	adapter.setDays("BTC-USDT", "105", "140")
	_, err = runner.SyncPartition(context.Background(), catalog.MarketSpot)
	require.NoError(t, err)

	ds, err := st.Load(st.PartitionPath("spot"))
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "140", ds[1].Close.String())
	assert.True(t, ds[1].IsBullish())
}
