package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlescan/internal/errors"
	"candlescan/internal/models"
)

func newTestStore(t *testing.T) (*CSVStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewCSVStore(dir, nil)
	require.NoError(t, err)
	return s, dir
}

func TestCSVRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	path := s.PartitionPath("spot")

	ds, changed := Merge(nil, []models.Candle{
		candle("BTC/USDT", 1, "105"),
		candle("BTC/USDT", 2, "90"),
		candle("ETH/USDT", 1, "100.5"),
	})
	require.True(t, changed)

	require.NoError(t, s.Save(path, ds))

	loaded, err := s.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ds, loaded)
}

func TestCSVSaveLeavesNoTempFile(t *testing.T) {
	s, dir := newTestStore(t)
	path := s.PartitionPath("spot")

	ds, _ := Merge(nil, []models.Candle{candle("BTC/USDT", 1, "105")})
	require.NoError(t, s.Save(path, ds))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestCSVLoadMissingFile(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Load(s.PartitionPath("spot"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDatasetNotFound)
}

func TestCSVLoadBadHeader(t *testing.T) {
	s, dir := newTestStore(t)
	path := filepath.Join(dir, "okx_spot_1d.csv")

	content := "timestamp,symbol,open,high,low,close,volume,k_type\n2024-03-01,BTC/USDT,100,110,95,105,10,bullish\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := s.Load(path)
	require.Error(t, err)
	var formatErr *errors.DatasetFormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestCSVLoadBadRow(t *testing.T) {
	s, dir := newTestStore(t)
	path := filepath.Join(dir, "okx_spot_1d.csv")

	content := "date,instrument,open,high,low,close,volume,direction\n2024-03-01,BTC/USDT,100,110,95,not-a-number,10,bullish\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := s.Load(path)
	require.Error(t, err)
	var formatErr *errors.DatasetFormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestPartitionPath(t *testing.T) {
	s, dir := newTestStore(t)
	assert.Equal(t, filepath.Join(dir, "okx_spot_1d.csv"), s.PartitionPath("spot"))
	assert.Equal(t, filepath.Join(dir, "okx_swap_1d.csv"), s.PartitionPath("swap"))
}
