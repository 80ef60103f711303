package analysis

import (
	"smc-signal-engine/internal/binance"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates Simple Moving Average of closes
func CalculateSMA(klines []binance.Kline, period int) float64 {
	if period <= 0 || len(klines) < period {
		return 0
	}

	sum := 0.0
	startIdx := len(klines) - period

	for i := startIdx; i < len(klines); i++ {
		sum += klines[i].Close
	}

	return sum / float64(period)
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// CalculateRSI calculates the Relative Strength Index
func CalculateRSI(klines []binance.Kline, period int) float64 {
	if period <= 0 || len(klines) < period+1 {
		return 50.0 // Neutral RSI
	}

	gains := 0.0
	losses := 0.0

	for i := len(klines) - period; i < len(klines); i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
