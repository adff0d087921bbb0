// Package models provides the core data structures for daily OHLCV market
// data: the candle record, the calendar-day key it is indexed by, and the
// derived candle direction used by the signal scanner.
package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction classifies a candle by the relation of its close to its open.
type Direction string

const (
	// DirectionBullish means the candle closed above its open.
	DirectionBullish Direction = "bullish"
	// DirectionBearish means the candle closed below its open.
	DirectionBearish Direction = "bearish"
	// DirectionFlat means open and close are equal. A flat candle never
	// satisfies a bullish predicate.
	DirectionFlat Direction = "flat"
)

// DirectionOf derives the direction from open and close prices.
func DirectionOf(open, close decimal.Decimal) Direction {
	switch close.Cmp(open) {
	case 1:
		return DirectionBullish
	case -1:
		return DirectionBearish
	default:
		return DirectionFlat
	}
}

// ParseDirection parses the serialized direction column.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionBullish, DirectionBearish, DirectionFlat:
		return Direction(s), nil
	}
	return "", fmt.Errorf("invalid direction %q", s)
}

// Candle is one instrument's OHLCV summary for one calendar day. Within a
// dataset at most one candle exists per (Instrument, Day), and Volume
// carries either raw base-asset volume or notional volume depending on the
// dataset's volume policy, never a mix.
type Candle struct {
	Day        Day
	Instrument string
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Direction  Direction
}

// Key identifies a candle within a dataset.
type Key struct {
	Instrument string
	Day        Day
}

// Key returns the candle's dedup key.
func (c *Candle) Key() Key {
	return Key{Instrument: c.Instrument, Day: c.Day}
}

// IsBullish reports whether the candle closed above its open.
func (c *Candle) IsBullish() bool {
	return c.Direction == DirectionBullish
}

// ValidationError reports a candle field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks the structural shape of the candle: key fields present,
// prices and volume non-negative, and the stored direction consistent with
// open and close. No OHLC ordering invariant is enforced beyond what the
// source provides.
func (c *Candle) Validate() error {
	if c.Instrument == "" {
		return &ValidationError{Field: "instrument", Message: "instrument cannot be empty"}
	}
	if c.Day.IsZero() {
		return &ValidationError{Field: "day", Message: "day cannot be zero"}
	}
	for _, p := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"open", c.Open},
		{"high", c.High},
		{"low", c.Low},
		{"close", c.Close},
		{"volume", c.Volume},
	} {
		if p.value.IsNegative() {
			return &ValidationError{Field: p.name, Message: p.name + " cannot be negative"}
		}
	}
	if want := DirectionOf(c.Open, c.Close); c.Direction != want {
		return &ValidationError{
			Field:   "direction",
			Message: fmt.Sprintf("direction %q inconsistent with open/close (want %q)", c.Direction, want),
		}
	}
	return nil
}

// String returns a human-readable representation of the candle.
func (c *Candle) String() string {
	return fmt.Sprintf("Candle{%s %s O:%s H:%s L:%s C:%s V:%s %s}",
		c.Instrument, c.Day, c.Open, c.High, c.Low, c.Close, c.Volume, c.Direction)
}
