package store

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"candlescan/internal/errors"
	"candlescan/internal/models"
)

// datasetColumns is the fixed schema of a persisted partition file. A file
// whose header does not match was created under a different policy and is
// rejected rather than silently merged.
var datasetColumns = []string{"date", "instrument", "open", "high", "low", "close", "volume", "direction"}

// CSVStore persists one dataset file per market-kind partition under a data
// directory.
type CSVStore struct {
	dir    string
	logger *slog.Logger
}

// NewCSVStore creates a store rooted at dir, creating the directory if
// needed.
func NewCSVStore(dir string, logger *slog.Logger) (*CSVStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &CSVStore{dir: dir, logger: logger}, nil
}

// PartitionPath returns the dataset file for a market-kind partition, e.g.
// okx_spot_1d.csv.
func (s *CSVStore) PartitionPath(partition string) string {
	return filepath.Join(s.dir, fmt.Sprintf("okx_%s_1d.csv", partition))
}

// Load reads a persisted dataset. A missing file returns ErrDatasetNotFound
// so callers can distinguish a first run from an empty scan result. Any
// schema or row-level mismatch is a DatasetFormatError, fatal for the
// partition.
func (s *CSVStore) Load(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, errors.ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(datasetColumns)

	header, err := r.Read()
	if err != nil {
		return nil, errors.NewDatasetFormatError(path, "failed to read header", err)
	}
	for i, col := range datasetColumns {
		if header[i] != col {
			return nil, errors.NewDatasetFormatError(path,
				fmt.Sprintf("unexpected header column %d: got %q, want %q", i, header[i], col), nil)
		}
	}

	var ds Dataset
	for line := 2; ; line++ {
		record, err := r.Read()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			return nil, errors.NewDatasetFormatError(path, fmt.Sprintf("failed to read line %d", line), err)
		}
		candle, err := parseRecord(record)
		if err != nil {
			return nil, errors.NewDatasetFormatError(path, fmt.Sprintf("invalid record at line %d", line), err)
		}
		ds = append(ds, candle)
	}

	s.logger.Debug("loaded dataset", "path", path, "rows", len(ds))
	return ds, nil
}

// Save atomically replaces the persisted dataset: the new content is
// written to a temporary file in the same directory and renamed over the
// old file, so no partial-write state is ever visible.
func (s *CSVStore) Save(path string, ds Dataset) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp dataset %s: %w", tmp, err)
	}

	w := csv.NewWriter(f)
	writeErr := w.Write(datasetColumns)
	if writeErr == nil {
		for i := range ds {
			if err := w.Write(formatRecord(&ds[i])); err != nil {
				writeErr = err
				break
			}
		}
	}
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write dataset %s: %w", tmp, writeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace dataset %s: %w", path, err)
	}

	s.logger.Debug("saved dataset", "path", path, "rows", len(ds))
	return nil
}

func parseRecord(record []string) (models.Candle, error) {
	day, err := models.ParseDay(record[0])
	if err != nil {
		return models.Candle{}, err
	}
	if record[1] == "" {
		return models.Candle{}, fmt.Errorf("empty instrument")
	}

	prices := make([]decimal.Decimal, 5)
	for i, field := range []string{"open", "high", "low", "close", "volume"} {
		prices[i], err = decimal.NewFromString(record[2+i])
		if err != nil {
			return models.Candle{}, fmt.Errorf("invalid %s %q: %w", field, record[2+i], err)
		}
	}

	direction, err := models.ParseDirection(record[7])
	if err != nil {
		return models.Candle{}, err
	}

	return models.Candle{
		Day:        day,
		Instrument: record[1],
		Open:       prices[0],
		High:       prices[1],
		Low:        prices[2],
		Close:      prices[3],
		Volume:     prices[4],
		Direction:  direction,
	}, nil
}

func formatRecord(c *models.Candle) []string {
	return []string{
		c.Day.String(),
		c.Instrument,
		c.Open.String(),
		c.High.String(),
		c.Low.String(),
		c.Close.String(),
		c.Volume.String(),
		string(c.Direction),
	}
}
