package analysis

// PoolKind names where resting liquidity sits
type PoolKind string

const (
	PoolSwingHigh PoolKind = "SWING_HIGH"
	PoolSwingLow  PoolKind = "SWING_LOW"
	PoolEqualHigh PoolKind = "EQUAL_HIGH"
	PoolEqualLow  PoolKind = "EQUAL_LOW"
)

const recentSwingPools = 5

// LiquidityPool is a price level where stop orders are assumed to rest
type LiquidityPool struct {
	Kind     PoolKind `json:"kind"`
	Level    float64  `json:"level"`
	Priority Priority `json:"priority"`
	Touches  int      `json:"touches,omitempty"`
	Index    int      `json:"index"` // Candle index of the swing or first cluster touch
}

// LiquidityPools holds buy-side pools above highs and sell-side pools below lows
type LiquidityPools struct {
	BuySide  []LiquidityPool `json:"buy_side"`
	SellSide []LiquidityPool `json:"sell_side"`
}

// BuildLiquidityPools lists the five most recent swings per side, newest
// first with the newest tagged high priority, followed by every equal-level
// cluster at high priority.
func BuildLiquidityPools(highs, lows []SwingPoint, equalHighs, equalLows []EqualLevelCluster) LiquidityPools {
	return LiquidityPools{
		BuySide:  sidePools(highs, equalHighs, PoolSwingHigh, PoolEqualHigh),
		SellSide: sidePools(lows, equalLows, PoolSwingLow, PoolEqualLow),
	}
}

func sidePools(swings []SwingPoint, clusters []EqualLevelCluster, swingKind, equalKind PoolKind) []LiquidityPool {
	recent := lastN(swings, recentSwingPools)
	pools := make([]LiquidityPool, 0, len(recent)+len(clusters))

	for i := len(recent) - 1; i >= 0; i-- {
		priority := PriorityMedium
		if i == len(recent)-1 {
			priority = PriorityHigh
		}
		pools = append(pools, LiquidityPool{
			Kind:     swingKind,
			Level:    recent[i].Price,
			Priority: priority,
			Index:    recent[i].Index,
		})
	}

	for _, c := range clusters {
		idx := 0
		if len(c.Indices) > 0 {
			idx = c.Indices[0]
		}
		pools = append(pools, LiquidityPool{
			Kind:     equalKind,
			Level:    c.Price,
			Priority: PriorityHigh,
			Touches:  c.Touches,
			Index:    idx,
		})
	}
	return pools
}

// ForDirection returns the pools a move in direction d would sweep first:
// sell-side liquidity for longs, buy-side for shorts.
func (lp LiquidityPools) ForDirection(d Direction) []LiquidityPool {
	switch d {
	case DirectionLong:
		return lp.SellSide
	case DirectionShort:
		return lp.BuySide
	default:
		return nil
	}
}

// Targets returns the opposing pools a position in direction d would aim for
func (lp LiquidityPools) Targets(d Direction) []LiquidityPool {
	return lp.ForDirection(d.Opposite())
}

// All returns both sides, buy side first
func (lp LiquidityPools) All() []LiquidityPool {
	out := make([]LiquidityPool, 0, len(lp.BuySide)+len(lp.SellSide))
	out = append(out, lp.BuySide...)
	return append(out, lp.SellSide...)
}
