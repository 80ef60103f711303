package analysis

import (
	"sort"

	"smc-signal-engine/internal/binance"
)

// SwingKind distinguishes swing highs from swing lows
type SwingKind string

const (
	SwingHigh SwingKind = "HIGH"
	SwingLow  SwingKind = "LOW"
)

// SwingPoint represents a significant price level
type SwingPoint struct {
	Index     int       `json:"index"`
	Price     float64   `json:"price"`
	Timestamp int64     `json:"timestamp"`
	Kind      SwingKind `json:"kind"`
}

// LevelType selects which side of the candle equal-level scans read
type LevelType string

const (
	EqualHighs LevelType = "EQUAL_HIGHS"
	EqualLows  LevelType = "EQUAL_LOWS"
)

// EqualLevelCluster is a group of candle extremes resting at one price
type EqualLevelCluster struct {
	Price   float64 `json:"price"`
	Touches int     `json:"touches"`
	Indices []int   `json:"indices"`
}

const equalLevelWindow = 30

// FindSwingPoints returns swing highs and lows, ascending by index.
// Candle i is a swing high when its high is strictly above every other high
// within lookback candles on both sides; ties disqualify. Lows mirror this.
func FindSwingPoints(candles []binance.Kline, lookback int) (highs, lows []SwingPoint) {
	if lookback <= 0 || len(candles) < 2*lookback+1 {
		return nil, nil
	}

	for i := lookback; i < len(candles)-lookback; i++ {
		isHigh, isLow := true, true
		current := candles[i]

		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= current.High {
				isHigh = false
			}
			if candles[j].Low <= current.Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh {
			highs = append(highs, SwingPoint{Index: i, Price: current.High, Timestamp: current.OpenTime, Kind: SwingHigh})
		}
		if isLow {
			lows = append(lows, SwingPoint{Index: i, Price: current.Low, Timestamp: current.OpenTime, Kind: SwingLow})
		}
	}

	return highs, lows
}

// FindEqualLevels clusters the highs or lows of the last 30 candles.
// Each price joins the first cluster whose anchor lies within
// tolerancePercent of it, otherwise it anchors a new cluster. Only clusters
// with two or more touches are returned, most-touched first.
func FindEqualLevels(candles []binance.Kline, levelType LevelType, tolerancePercent float64) []EqualLevelCluster {
	start := 0
	if len(candles) > equalLevelWindow {
		start = len(candles) - equalLevelWindow
	}

	var clusters []EqualLevelCluster
	for i := start; i < len(candles); i++ {
		price := candles[i].Low
		if levelType == EqualHighs {
			price = candles[i].High
		}

		joined := false
		for c := range clusters {
			if abs(clusters[c].Price-price)/price*100 <= tolerancePercent {
				clusters[c].Touches++
				clusters[c].Indices = append(clusters[c].Indices, i)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, EqualLevelCluster{Price: price, Touches: 1, Indices: []int{i}})
		}
	}

	result := make([]EqualLevelCluster, 0, len(clusters))
	for _, c := range clusters {
		if c.Touches >= 2 {
			result = append(result, c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Touches > result[j].Touches
	})
	return result
}

// lastN returns up to the n most recent points, oldest first
func lastN(points []SwingPoint, n int) []SwingPoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
