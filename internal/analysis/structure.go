package analysis

import "smc-signal-engine/internal/binance"

// BreakKind classifies a structural break
type BreakKind string

const (
	BullishChoCH BreakKind = "BULLISH_CHOCH"
	BearishChoCH BreakKind = "BEARISH_CHOCH"
	BullishBOS   BreakKind = "BULLISH_BOS"
	BearishBOS   BreakKind = "BEARISH_BOS"
	BullishIBOS  BreakKind = "BULLISH_IBOS"
	BearishIBOS  BreakKind = "BEARISH_IBOS"
)

const (
	internalWindow   = 10
	internalLookback = 2
)

// Direction returns the trade bias a break implies
func (k BreakKind) Direction() Direction {
	switch k {
	case BullishChoCH, BullishBOS, BullishIBOS:
		return DirectionLong
	case BearishChoCH, BearishBOS, BearishIBOS:
		return DirectionShort
	default:
		return DirectionNeutral
	}
}

// StructuralBreak is a change of character or a break of structure
type StructuralBreak struct {
	Kind            BreakKind `json:"kind"`
	BrokenLevel     float64   `json:"broken_level"`
	CandleIndex     int       `json:"candle_index"`
	Timestamp       int64     `json:"timestamp"`
	StrengthPercent float64   `json:"strength_percent"`
}

// DetectChoCH compares the two most recent swings of each kind. A higher
// low is checked before a lower high, so a series showing both reports the
// bullish change.
func DetectChoCH(highs, lows []SwingPoint) *StructuralBreak {
	if len(highs) < 2 || len(lows) < 2 {
		return nil
	}
	recentHighs := lastN(highs, 3)
	recentLows := lastN(lows, 3)

	latestLow, priorLow := recentLows[len(recentLows)-1], recentLows[len(recentLows)-2]
	if latestLow.Price > priorLow.Price {
		return &StructuralBreak{
			Kind:            BullishChoCH,
			BrokenLevel:     priorLow.Price,
			CandleIndex:     latestLow.Index,
			Timestamp:       latestLow.Timestamp,
			StrengthPercent: (latestLow.Price - priorLow.Price) / priorLow.Price * 100,
		}
	}

	latestHigh, priorHigh := recentHighs[len(recentHighs)-1], recentHighs[len(recentHighs)-2]
	if latestHigh.Price < priorHigh.Price {
		return &StructuralBreak{
			Kind:            BearishChoCH,
			BrokenLevel:     priorHigh.Price,
			CandleIndex:     latestHigh.Index,
			Timestamp:       latestHigh.Timestamp,
			StrengthPercent: (priorHigh.Price - latestHigh.Price) / priorHigh.Price * 100,
		}
	}

	return nil
}

// DetectBOS checks whether the latest candle's body and close both clear
// the second-to-last swing high (bullish) or swing low (bearish).
func DetectBOS(candles []binance.Kline, highs, lows []SwingPoint) *StructuralBreak {
	return detectBreak(candles, highs, lows, BullishBOS, BearishBOS)
}

// DetectInternalBOS applies the break rule to the last 10 candles with a
// two-candle swing lookback.
func DetectInternalBOS(candles []binance.Kline) *StructuralBreak {
	if len(candles) == 0 {
		return nil
	}
	offset := 0
	window := candles
	if len(candles) > internalWindow {
		offset = len(candles) - internalWindow
		window = candles[offset:]
	}

	highs, lows := FindSwingPoints(window, internalLookback)
	brk := detectBreak(window, highs, lows, BullishIBOS, BearishIBOS)
	if brk != nil {
		brk.CandleIndex += offset
	}
	return brk
}

func detectBreak(candles []binance.Kline, highs, lows []SwingPoint, bullish, bearish BreakKind) *StructuralBreak {
	if len(candles) == 0 {
		return nil
	}
	idx := len(candles) - 1
	last := candles[idx]

	if len(highs) >= 2 {
		level := highs[len(highs)-2].Price
		if bodyTop(last.Open, last.Close) > level && last.Close > level {
			return &StructuralBreak{
				Kind:            bullish,
				BrokenLevel:     level,
				CandleIndex:     idx,
				Timestamp:       last.OpenTime,
				StrengthPercent: (last.Close - level) / level * 100,
			}
		}
	}

	if len(lows) >= 2 {
		level := lows[len(lows)-2].Price
		if bodyBottom(last.Open, last.Close) < level && last.Close < level {
			return &StructuralBreak{
				Kind:            bearish,
				BrokenLevel:     level,
				CandleIndex:     idx,
				Timestamp:       last.OpenTime,
				StrengthPercent: (level - last.Close) / level * 100,
			}
		}
	}

	return nil
}

// ConfirmStrongClose reports whether the candle after the break closes
// beyond the broken level in the break's direction.
func ConfirmStrongClose(candles []binance.Kline, brk *StructuralBreak) bool {
	if brk == nil {
		return false
	}
	next := brk.CandleIndex + 1
	if next < 0 || next >= len(candles) {
		return false
	}
	c := candles[next]

	switch brk.Kind.Direction() {
	case DirectionLong:
		return c.Close > brk.BrokenLevel && c.Close > c.Open
	case DirectionShort:
		return c.Close < brk.BrokenLevel && c.Close < c.Open
	default:
		return false
	}
}
