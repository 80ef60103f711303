package analysis

import (
	"math"

	"smc-signal-engine/internal/binance"
)

// VolumeAnalyzer provides volume-based technical analysis
type VolumeAnalyzer struct {
	avgPeriod int // Period for average volume calculation
}

// VolumeProfile represents volume analysis results
type VolumeProfile struct {
	CurrentVolume float64 `json:"current_volume"`
	AverageVolume float64 `json:"average_volume"`
	VolumeRatio   float64 `json:"volume_ratio"` // Current / Average
	IsHighVolume  bool    `json:"is_high_volume"`
	VolumeType    string  `json:"volume_type"` // "buying", "selling", "neutral"
}

// Below this ratio of current to average volume the market is treated as thin
const lowVolumeRatio = 0.5

// NewVolumeAnalyzer creates a new volume analyzer
func NewVolumeAnalyzer(avgPeriod int) *VolumeAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = 20 // Default 20-period average
	}
	return &VolumeAnalyzer{
		avgPeriod: avgPeriod,
	}
}

// AnalyzeVolume compares the latest candle's volume with the recent average
func (va *VolumeAnalyzer) AnalyzeVolume(candles []binance.Kline) *VolumeProfile {
	if len(candles) == 0 {
		return nil
	}

	currentCandle := candles[len(candles)-1]
	currentVolume := currentCandle.Volume
	avgVolume := va.CalculateAverageVolume(candles)

	var volumeRatio float64
	if avgVolume > 0 {
		volumeRatio = currentVolume / avgVolume
	}

	return &VolumeProfile{
		CurrentVolume: currentVolume,
		AverageVolume: avgVolume,
		VolumeRatio:   volumeRatio,
		IsHighVolume:  volumeRatio > 2.0,
		VolumeType:    va.DetermineVolumeType(currentCandle),
	}
}

// CalculateAverageVolume calculates the average volume over the specified period
func (va *VolumeAnalyzer) CalculateAverageVolume(candles []binance.Kline) float64 {
	if len(candles) == 0 {
		return 0
	}

	period := va.avgPeriod
	if len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}

	return sum / float64(period)
}

// DetermineVolumeType identifies if volume is buying or selling pressure
func (va *VolumeAnalyzer) DetermineVolumeType(candle binance.Kline) string {
	bodySize := math.Abs(candle.Close - candle.Open)
	upperWick := candle.High - math.Max(candle.Open, candle.Close)
	lowerWick := math.Min(candle.Open, candle.Close) - candle.Low

	if candle.Close > candle.Open {
		if upperWick < bodySize*0.2 {
			return "buying"
		}
	} else if candle.Close < candle.Open {
		if lowerWick < bodySize*0.2 {
			return "selling"
		}
	}

	return "neutral"
}

// IsLowLiquidity flags thin markets: 24h quote volume under the configured
// floor, or the latest candle trading at under half its recent average.
// A zero floor or missing ticker disables the 24h check.
func IsLowLiquidity(profile *VolumeProfile, quoteVolume24h, minQuoteVolume24h float64) bool {
	if minQuoteVolume24h > 0 && quoteVolume24h > 0 && quoteVolume24h < minQuoteVolume24h {
		return true
	}
	return profile != nil && profile.AverageVolume > 0 && profile.VolumeRatio < lowVolumeRatio
}
