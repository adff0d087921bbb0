package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchErrorWrapping(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewFetchError("BTC/USDT", cause)

	assert.Contains(t, err.Error(), "BTC/USDT")
	assert.ErrorIs(t, err, cause)

	fe, ok := AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, "BTC/USDT", fe.Instrument)

	_, ok = AsFetchError(cause)
	assert.False(t, ok)
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("market", "unsupported kind %q", "margin")
	assert.Contains(t, err.Error(), "market")
	assert.Contains(t, err.Error(), "margin")
}

func TestDatasetFormatError(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	err := NewDatasetFormatError("okx_spot_1d.csv", "failed to read header", cause)

	assert.Contains(t, err.Error(), "okx_spot_1d.csv")
	assert.ErrorIs(t, err, cause)

	bare := NewDatasetFormatError("okx_spot_1d.csv", "unexpected header", nil)
	assert.Contains(t, bare.Error(), "unexpected header")
}
