// Package errors defines the error taxonomy for the candle sync and scan
// pipeline. The split matters for control flow: configuration and dataset
// errors are fatal for a partition and abort its run, while fetch errors are
// recoverable per instrument and never propagate past the fetch scheduler.
package errors

import (
	"errors"
	"fmt"
)

// ErrDatasetNotFound signals that a persisted dataset file does not exist.
// Sync treats a missing partition as a first run (empty dataset); scan
// surfaces it to the caller, distinct from a dataset with zero matches.
var ErrDatasetNotFound = errors.New("dataset not found")

// ConfigurationError is a static misconfiguration such as an unsupported
// market kind. It is fatal and surfaced before any fetch begins.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a ConfigurationError for the given field.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// FetchError is a per-instrument transport or protocol failure. The
// instrument is skipped for the run; sibling fetches are unaffected.
type FetchError struct {
	Instrument string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Instrument, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps a transport failure with the instrument it belongs to.
func NewFetchError(instrument string, err error) *FetchError {
	return &FetchError{Instrument: instrument, Err: err}
}

// AsFetchError extracts a FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// DatasetFormatError means a persisted dataset file exists but does not
// match the expected schema. Fatal for that partition: incompatible shapes
// must never be silently merged.
type DatasetFormatError struct {
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DatasetFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dataset format error in %s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("dataset format error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *DatasetFormatError) Unwrap() error {
	return e.Err
}

// NewDatasetFormatError creates a DatasetFormatError for the given file.
func NewDatasetFormatError(path, message string, err error) *DatasetFormatError {
	return &DatasetFormatError{Path: path, Message: message, Err: err}
}
