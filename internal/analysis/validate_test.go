package analysis

import (
	"errors"
	"math"
	"testing"
)

// TestValidateCandles tests rejection of malformed candles
func TestValidateCandles(t *testing.T) {
	tests := []struct {
		name  string
		bars  []bar
		field string
		index int
	}{
		{"negative price", []bar{{100, 101, 99, 100}, {100, 101, -1, 100}}, "low", 1},
		{"zero open", []bar{{0, 101, 99, 100}}, "open", 0},
		{"high below low", []bar{{100, 98, 99, 100}}, "high", 0},
		{"close above high", []bar{{100, 101, 99, 102}}, "open/close", 0},
	}

	for _, tt := range tests {
		err := ValidateCandles(series(tt.bars...))
		if err == nil {
			t.Errorf("%s: expected an error", tt.name)
			continue
		}
		if !errors.Is(err, ErrMalformedCandle) {
			t.Errorf("%s: expected ErrMalformedCandle, got %v", tt.name, err)
		}
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("%s: expected *ValidationError, got %T", tt.name, err)
			continue
		}
		if vErr.Field != tt.field || vErr.Index != tt.index {
			t.Errorf("%s: expected %s at %d, got %s at %d", tt.name, tt.field, tt.index, vErr.Field, vErr.Index)
		}
	}
}

// TestValidateCandlesVolume tests that volume must be strictly positive
func TestValidateCandlesVolume(t *testing.T) {
	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		candles := series(flat(3, 100)...)
		candles[1].Volume = v

		err := ValidateCandles(candles)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("volume %g: expected *ValidationError, got %v", v, err)
			continue
		}
		if vErr.Field != "volume" || vErr.Index != 1 {
			t.Errorf("volume %g: expected volume at 1, got %s at %d", v, vErr.Field, vErr.Index)
		}
	}
}

// TestValidateCandlesAcceptsWellFormed tests that real-looking data passes
func TestValidateCandlesAcceptsWellFormed(t *testing.T) {
	if err := ValidateCandles(series(flat(30, 100)...)); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := ValidateCandles(nil); err != nil {
		t.Errorf("Expected no error for empty input, got %v", err)
	}
}

// TestValidateCandlesNaN tests rejection of non-finite values
func TestValidateCandlesNaN(t *testing.T) {
	candles := series(flat(3, 100)...)
	candles[2].Close = math.NaN()

	if err := ValidateCandles(candles); !errors.Is(err, ErrMalformedCandle) {
		t.Errorf("Expected ErrMalformedCandle for NaN, got %v", err)
	}
}

// TestIsChronological tests timestamp ordering
func TestIsChronological(t *testing.T) {
	candles := series(flat(5, 100)...)
	if !IsChronological(candles) {
		t.Error("Expected ascending series to be chronological")
	}

	candles[3].OpenTime = candles[2].OpenTime
	if IsChronological(candles) {
		t.Error("Expected duplicate timestamps to break ordering")
	}
}

// TestCalculateSMAAndRSI tests the indicator helpers
func TestCalculateSMAAndRSI(t *testing.T) {
	candles := series(
		bar{1, 1, 1, 1},
		bar{2, 2, 2, 2},
		bar{3, 3, 3, 3},
		bar{4, 4, 4, 4},
	)

	if sma := CalculateSMA(candles, 2); sma != 3.5 {
		t.Errorf("Expected SMA 3.5, got %f", sma)
	}
	if sma := CalculateSMA(candles, 10); sma != 0 {
		t.Errorf("Expected 0 for insufficient data, got %f", sma)
	}
	if rsi := CalculateRSI(candles, 3); rsi != 100 {
		t.Errorf("Expected RSI 100 for only gains, got %f", rsi)
	}
	if rsi := CalculateRSI(candles, 14); rsi != 50 {
		t.Errorf("Expected neutral RSI for insufficient data, got %f", rsi)
	}
	if rsi := CalculateRSI(series(flat(20, 100)...), 14); rsi != 50 {
		t.Errorf("Expected neutral RSI for a flat series, got %f", rsi)
	}
}

// TestIsLowLiquidity tests the thin market flag
func TestIsLowLiquidity(t *testing.T) {
	va := NewVolumeAnalyzer(20)
	candles := series(flat(20, 100)...)

	profile := va.AnalyzeVolume(candles)
	if IsLowLiquidity(profile, 5e6, 1e6) {
		t.Error("Steady volume above the floor should not be thin")
	}
	if !IsLowLiquidity(profile, 5e5, 1e6) {
		t.Error("24h volume under the floor should be thin")
	}

	candles[len(candles)-1].Volume = 10
	if !IsLowLiquidity(va.AnalyzeVolume(candles), 5e6, 1e6) {
		t.Error("A volume collapse on the latest candle should be thin")
	}
}
