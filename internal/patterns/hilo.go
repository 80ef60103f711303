package patterns

import (
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/binance"
)

// CountState is a step of the high/low entry count
type CountState string

const (
	CountNone     CountState = "NONE"
	CountOne      CountState = "ONE"
	CountPullback CountState = "PULLBACK"
	CountTwo      CountState = "TWO"
)

// PauseReasonRanging is reported when the recent range is too tight to count
const PauseReasonRanging = "PRICE_RANGING"

const (
	entryBuffer = 0.001
	stopBuffer  = 0.001
)

// HiLoResult is the outcome of a count over the recent candles
type HiLoResult struct {
	Direction      analysis.Direction `json:"direction"`
	State          CountState         `json:"state"`
	Valid          bool               `json:"valid"`
	CountingPaused bool               `json:"counting_paused"`
	PauseReason    string             `json:"pause_reason,omitempty"`
	RangePercent   float64            `json:"range_percent"`
	OneIndex       int                `json:"one_index"`
	PullbackIndex  int                `json:"pullback_index"`
	TwoIndex       int                `json:"two_index"`
	EntryPrice     float64            `json:"entry_price,omitempty"`
	StopLoss       float64            `json:"stop_loss,omitempty"`
}

// HiLoCounter counts a push, a pullback and a second push in the trade
// direction before allowing an entry
type HiLoCounter struct {
	window           int     // Candles scanned for the count
	rangingWindow    int     // Candles checked for a tight range
	rangingThreshold float64 // Range as % of mid price below which counting pauses
}

// NewHiLoCounter creates a counter, substituting defaults for non-positive values
func NewHiLoCounter(window, rangingWindow int, rangingThreshold float64) *HiLoCounter {
	if window <= 0 {
		window = 10
	}
	if rangingWindow <= 0 {
		rangingWindow = 8
	}
	if rangingThreshold <= 0 {
		rangingThreshold = 1.5
	}
	return &HiLoCounter{
		window:           window,
		rangingWindow:    rangingWindow,
		rangingThreshold: rangingThreshold,
	}
}

// Transition advances the count by one candle. ref is the candle the
// current state measures against: the previous candle in NONE, the ONE
// candle in ONE and the pullback candle in PULLBACK. TWO is terminal.
func Transition(d analysis.Direction, state CountState, ref, c binance.Kline) CountState {
	if d != analysis.DirectionLong && d != analysis.DirectionShort {
		return state
	}
	switch state {
	case CountNone:
		if extends(d, c, ref) {
			return CountOne
		}
	case CountOne:
		if retraces(d, c, ref) {
			return CountPullback
		}
	case CountPullback:
		if extends(d, c, ref) {
			return CountTwo
		}
	}
	return state
}

func extends(d analysis.Direction, c, ref binance.Kline) bool {
	if d == analysis.DirectionLong {
		return c.High > ref.High
	}
	return c.Low < ref.Low
}

func retraces(d analysis.Direction, c, ref binance.Kline) bool {
	if d == analysis.DirectionLong {
		return c.High < ref.High
	}
	return c.Low > ref.Low
}

// Count runs the state machine over the last window candles and derives
// entry and stop once TWO is reached. A tight recent range pauses the count
// regardless of state.
func (hc *HiLoCounter) Count(candles []binance.Kline, d analysis.Direction) HiLoResult {
	result := HiLoResult{
		Direction:     d,
		State:         CountNone,
		OneIndex:      -1,
		PullbackIndex: -1,
		TwoIndex:      -1,
	}
	if len(candles) < 2 || (d != analysis.DirectionLong && d != analysis.DirectionShort) {
		return result
	}

	start := len(candles) - hc.window
	if start < 0 {
		start = 0
	}

	ref := candles[start]
	for i := start + 1; i < len(candles) && result.State != CountTwo; i++ {
		next := Transition(d, result.State, ref, candles[i])
		switch {
		case next == CountOne && result.State == CountNone:
			result.OneIndex = i
			ref = candles[i]
		case next == CountPullback:
			if result.State != CountPullback {
				result.PullbackIndex = i
				ref = candles[i]
			}
		case next == CountTwo:
			result.TwoIndex = i
		case result.State == CountNone:
			ref = candles[i]
		}
		result.State = next
	}

	result.RangePercent = hc.rangePercent(candles)
	if result.RangePercent < hc.rangingThreshold {
		result.CountingPaused = true
		result.PauseReason = PauseReasonRanging
		return result
	}

	if result.State == CountTwo {
		result.Valid = true
		result.EntryPrice, result.StopLoss = entryAndStop(candles, d, result.PullbackIndex, result.TwoIndex)
	}
	return result
}

func (hc *HiLoCounter) rangePercent(candles []binance.Kline) float64 {
	start := len(candles) - hc.rangingWindow
	if start < 0 {
		start = 0
	}
	hi, lo := candles[start].High, candles[start].Low
	for _, c := range candles[start+1:] {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}
	mid := (hi + lo) / 2
	if mid <= 0 {
		return 0
	}
	return (hi - lo) / mid * 100
}

func entryAndStop(candles []binance.Kline, d analysis.Direction, pullback, two int) (entry, stop float64) {
	if d == analysis.DirectionLong {
		entry = candles[two].High * (1 + entryBuffer)
		low := candles[pullback].Low
		for _, c := range candles[pullback : two+1] {
			if c.Low < low {
				low = c.Low
			}
		}
		return entry, low * (1 - stopBuffer)
	}

	entry = candles[two].Low * (1 - entryBuffer)
	high := candles[pullback].High
	for _, c := range candles[pullback : two+1] {
		if c.High > high {
			high = c.High
		}
	}
	return entry, high * (1 + stopBuffer)
}
