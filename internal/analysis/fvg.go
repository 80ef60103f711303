package analysis

import (
	"smc-signal-engine/internal/binance"
)

// FVGType represents the type of Fair Value Gap
type FVGType string

const (
	BullishFVG FVGType = "BULLISH"
	BearishFVG FVGType = "BEARISH"
)

// FVG represents a Fair Value Gap in price action
type FVG struct {
	Type        FVGType `json:"type"`
	Top         float64 `json:"top"`
	Bottom      float64 `json:"bottom"`
	SizePercent float64 `json:"size_percent"`
	CandleIndex int     `json:"candle_index"` // Index of the third candle
	Timestamp   int64   `json:"timestamp"`
}

// FVGDetector detects Fair Value Gaps in candlestick data
type FVGDetector struct {
	minGapPercent float64 // Minimum gap size as percentage
}

// NewFVGDetector creates a new FVG detector
func NewFVGDetector(minGapPercent float64) *FVGDetector {
	if minGapPercent <= 0 {
		minGapPercent = 0.1 // Default 0.1% minimum gap
	}
	return &FVGDetector{
		minGapPercent: minGapPercent,
	}
}

// DetectFVGs identifies all Fair Value Gaps in the given candles.
// A gap is measured between the first and third candle of each window;
// the middle candle is ignored.
func (fd *FVGDetector) DetectFVGs(candles []binance.Kline) []FVG {
	if len(candles) < 3 {
		return nil
	}

	var fvgs []FVG
	for i := 2; i < len(candles); i++ {
		c1 := candles[i-2]
		c3 := candles[i]

		if c1.High < c3.Low {
			if fvg, ok := fd.newFVG(BullishFVG, c3.Low, c1.High, i, c3.OpenTime); ok {
				fvgs = append(fvgs, fvg)
			}
		}

		if c1.Low > c3.High {
			if fvg, ok := fd.newFVG(BearishFVG, c1.Low, c3.High, i, c3.OpenTime); ok {
				fvgs = append(fvgs, fvg)
			}
		}
	}

	return fvgs
}

func (fd *FVGDetector) newFVG(t FVGType, top, bottom float64, index int, ts int64) (FVG, bool) {
	mid := (top + bottom) / 2
	size := (top - bottom) / mid * 100
	if size < fd.minGapPercent {
		return FVG{}, false
	}
	return FVG{
		Type:        t,
		Top:         top,
		Bottom:      bottom,
		SizePercent: size,
		CandleIndex: index,
		Timestamp:   ts,
	}, true
}

// Contains checks if price is within the gap, edges included
func (f FVG) Contains(price float64) bool {
	return price >= f.Bottom && price <= f.Top
}

// LatestFVG returns the most recently formed gap, or nil
func LatestFVG(fvgs []FVG) *FVG {
	if len(fvgs) == 0 {
		return nil
	}
	latest := fvgs[len(fvgs)-1]
	return &latest
}
