package analysis

import (
	"errors"
	"fmt"
	"math"

	"smc-signal-engine/internal/binance"
)

// ErrMalformedCandle marks candle data that cannot have come from a real market
var ErrMalformedCandle = errors.New("malformed candle")

// ValidationError reports the first malformed candle in a series
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s at index %d: %s %s", ErrMalformedCandle, e.Index, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrMalformedCandle
}

// ValidateCandles fails fast on the first candle with a non-positive or
// non-finite price or volume, or an inverted range.
func ValidateCandles(candles []binance.Kline) error {
	for i, c := range candles {
		for _, f := range []struct {
			name  string
			value float64
		}{{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}} {
			if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
				return &ValidationError{Index: i, Field: f.name, Reason: "is not finite"}
			}
			if f.value <= 0 {
				return &ValidationError{Index: i, Field: f.name, Reason: fmt.Sprintf("must be positive, got %g", f.value)}
			}
		}
		if !(c.Volume > 0) || math.IsInf(c.Volume, 0) {
			return &ValidationError{Index: i, Field: "volume", Reason: fmt.Sprintf("must be positive, got %g", c.Volume)}
		}
		if c.High < c.Low {
			return &ValidationError{Index: i, Field: "high", Reason: fmt.Sprintf("%g is below low %g", c.High, c.Low)}
		}
		if c.Open > c.High || c.Open < c.Low || c.Close > c.High || c.Close < c.Low {
			return &ValidationError{Index: i, Field: "open/close", Reason: "outside the high-low range"}
		}
	}
	return nil
}

// IsChronological reports whether open times strictly increase
func IsChronological(candles []binance.Kline) bool {
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime <= candles[i-1].OpenTime {
			return false
		}
	}
	return true
}
