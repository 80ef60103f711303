package analysis

import "smc-signal-engine/internal/binance"

// SweepKind is the side of the book whose stops were taken
type SweepKind string

const (
	SellSideSweep SweepKind = "SELL_SIDE"
	BuySideSweep  SweepKind = "BUY_SIDE"
)

// Reasons a sweep was not detected
const (
	ReasonNoLiquidityPool = "NO_LIQUIDITY_POOL"
	ReasonNoValidSweep    = "NO_VALID_SWEEP"
	ReasonNoDirection     = "NO_DIRECTION"
)

// SweepEvent describes a wick through a pool that closed back inside
type SweepEvent struct {
	Kind            SweepKind     `json:"kind"`
	Pool            LiquidityPool `json:"pool"`
	CandleIndex     int           `json:"candle_index"`
	Timestamp       int64         `json:"timestamp"`
	Extreme         float64       `json:"extreme"` // Low for sell-side, high for buy-side
	WickLength      float64       `json:"wick_length"`
	BodySize        float64       `json:"body_size"`
	WickToBodyRatio float64       `json:"wick_to_body_ratio"`
	SweepPercent    float64       `json:"sweep_percent"`
	Confirmed       bool          `json:"confirmed"`
}

// SweepResult is either a detected sweep or the reason none was found.
// Event is set only when Detected is true; PoolLevel and CandlesChecked
// describe the scan either way.
type SweepResult struct {
	Detected       bool        `json:"detected"`
	Event          *SweepEvent `json:"event,omitempty"`
	Reason         string      `json:"reason,omitempty"`
	PoolLevel      float64     `json:"pool_level"`
	CandlesChecked int         `json:"candles_checked"`
}

// Confirmed reports a detected and follow-through-confirmed sweep
func (r SweepResult) Confirmed() bool {
	return r.Detected && r.Event != nil && r.Event.Confirmed
}

// SweepConfig holds the sweep thresholds
type SweepConfig struct {
	Window           int
	MinWickBodyRatio float64
	MinSweepPercent  float64
	ConfirmCandles   int
}

// DefaultSweepConfig returns a 5-candle window, wick above 2x body,
// at least 0.1% depth and 3 candles of follow-through.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Window:           5,
		MinWickBodyRatio: 2.0,
		MinSweepPercent:  0.1,
		ConfirmCandles:   3,
	}
}

// SweepDetector finds liquidity sweeps against a selected pool
type SweepDetector struct {
	cfg SweepConfig
}

// NewSweepDetector creates a detector, filling unset thresholds with defaults
func NewSweepDetector(cfg SweepConfig) *SweepDetector {
	def := DefaultSweepConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinWickBodyRatio <= 0 {
		cfg.MinWickBodyRatio = def.MinWickBodyRatio
	}
	if cfg.MinSweepPercent <= 0 {
		cfg.MinSweepPercent = def.MinSweepPercent
	}
	if cfg.ConfirmCandles <= 0 {
		cfg.ConfirmCandles = def.ConfirmCandles
	}
	return &SweepDetector{cfg: cfg}
}

// SelectPool picks the first high-priority pool, else the first pool
func SelectPool(pools []LiquidityPool) (LiquidityPool, bool) {
	if len(pools) == 0 {
		return LiquidityPool{}, false
	}
	for _, p := range pools {
		if p.Priority == PriorityHigh {
			return p, true
		}
	}
	return pools[0], true
}

// Detect looks for a sweep ahead of a move in direction d. Longs need
// sell-side liquidity taken below the pool, shorts buy-side above it. The
// last Window candles are scanned oldest first and the first qualifying
// candle wins.
func (sd *SweepDetector) Detect(candles []binance.Kline, d Direction, pools LiquidityPools) SweepResult {
	if d != DirectionLong && d != DirectionShort {
		return SweepResult{Reason: ReasonNoDirection}
	}
	pool, ok := SelectPool(pools.ForDirection(d))
	if !ok {
		return SweepResult{Reason: ReasonNoLiquidityPool}
	}

	start := len(candles) - sd.cfg.Window
	if start < 0 {
		start = 0
	}

	checked := 0
	for i := start; i < len(candles); i++ {
		checked++
		if ev, ok := sd.evaluate(candles[i], d, pool); ok {
			ev.CandleIndex = i
			ev.Timestamp = candles[i].OpenTime
			ev.Confirmed = sd.confirm(candles, i, d)
			return SweepResult{
				Detected:       true,
				Event:          &ev,
				PoolLevel:      pool.Level,
				CandlesChecked: checked,
			}
		}
	}

	return SweepResult{
		Reason:         ReasonNoValidSweep,
		PoolLevel:      pool.Level,
		CandlesChecked: checked,
	}
}

func (sd *SweepDetector) evaluate(c binance.Kline, d Direction, pool LiquidityPool) (SweepEvent, bool) {
	body := abs(c.Close - c.Open)
	if body == 0 {
		return SweepEvent{}, false
	}

	var wick, depth, extreme float64
	var kind SweepKind
	if d == DirectionLong {
		if c.Low >= pool.Level || c.Close <= pool.Level {
			return SweepEvent{}, false
		}
		wick = bodyBottom(c.Open, c.Close) - c.Low
		depth = (pool.Level - c.Low) / pool.Level * 100
		extreme = c.Low
		kind = SellSideSweep
	} else {
		if c.High <= pool.Level || c.Close >= pool.Level {
			return SweepEvent{}, false
		}
		wick = c.High - bodyTop(c.Open, c.Close)
		depth = (c.High - pool.Level) / pool.Level * 100
		extreme = c.High
		kind = BuySideSweep
	}

	if wick <= body*sd.cfg.MinWickBodyRatio || depth < sd.cfg.MinSweepPercent {
		return SweepEvent{}, false
	}

	return SweepEvent{
		Kind:            kind,
		Pool:            pool,
		Extreme:         extreme,
		WickLength:      wick,
		BodySize:        body,
		WickToBodyRatio: wick / body,
		SweepPercent:    depth,
	}, true
}

// confirm looks at up to ConfirmCandles after the sweep for a close in the
// trade direction or beyond the first follow-up candle's open.
func (sd *SweepDetector) confirm(candles []binance.Kline, sweepIdx int, d Direction) bool {
	first := sweepIdx + 1
	if first >= len(candles) {
		return false
	}
	ref := candles[first].Open

	for i := first; i < len(candles) && i <= sweepIdx+sd.cfg.ConfirmCandles; i++ {
		c := candles[i]
		if d == DirectionLong && (c.Close > c.Open || c.Close > ref) {
			return true
		}
		if d == DirectionShort && (c.Close < c.Open || c.Close < ref) {
			return true
		}
	}
	return false
}
