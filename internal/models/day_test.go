package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2024-03-07")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-07", day.String())

	_, err = ParseDay("07/03/2024")
	assert.Error(t, err)

	_, err = ParseDay("")
	assert.Error(t, err)
}

func TestDayOf_TruncatesInLocation(t *testing.T) {
	// 2024-03-07 23:30 UTC is already 2024-03-08 in Tokyo.
	ts := time.Date(2024, 3, 7, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-03-07", DayOf(ts, time.UTC).String())

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08", DayOf(ts, tokyo).String())

	// nil location falls back to UTC.
	assert.Equal(t, "2024-03-07", DayOf(ts, nil).String())
}

func TestDayAddDays(t *testing.T) {
	day := NewDay(2024, time.March, 1)

	assert.Equal(t, "2024-03-03", day.AddDays(2).String())
	// Crosses the month boundary backwards, 2024 is a leap year.
	assert.Equal(t, "2024-02-28", day.AddDays(-2).String())
}

func TestDayCompare(t *testing.T) {
	a := NewDay(2024, time.March, 1)
	b := NewDay(2024, time.March, 2)

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))

	// Days are comparable values, usable as map keys.
	assert.Equal(t, a, NewDay(2024, time.March, 1))
}

func TestDayEpochMillis(t *testing.T) {
	day := NewDay(2024, time.March, 7)
	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC).UnixMilli(), day.EpochMillis(time.UTC))
}

func TestDayIsZero(t *testing.T) {
	assert.True(t, Day{}.IsZero())
	assert.False(t, NewDay(2024, time.January, 1).IsZero())
}
