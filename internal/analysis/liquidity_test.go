package analysis

import (
	"math"
	"testing"
)

// TestDetectBullishOrderBlock tests the down-up-up displacement pattern
func TestDetectBullishOrderBlock(t *testing.T) {
	candles := series(
		bar{100, 101, 97, 98},
		bar{98, 103, 97.5, 102}, // closes above 101
		bar{102, 104, 101.5, 103},
	)

	blocks := DetectOrderBlocks(candles)

	if len(blocks) != 1 {
		t.Fatalf("Expected 1 order block, got %d", len(blocks))
	}
	ob := blocks[0]
	if ob.Type != BullishOrderBlock {
		t.Errorf("Expected BULLISH, got %s", ob.Type)
	}
	if ob.CandleIndex != 1 || ob.High != 103 || ob.Low != 97.5 {
		t.Errorf("Unexpected block bounds %+v", ob)
	}
	if math.Abs(ob.Strength-4.0/98) > 1e-12 {
		t.Errorf("Expected strength %f, got %f", 4.0/98, ob.Strength)
	}
	if !ob.Contains(100) || ob.Contains(104) {
		t.Error("Contains should respect the block range")
	}
}

// TestDetectBearishOrderBlock tests the up-down-down displacement pattern
func TestDetectBearishOrderBlock(t *testing.T) {
	candles := series(
		bar{100, 103, 99, 102},
		bar{102, 102.5, 97, 98}, // closes below 99
		bar{98, 98.5, 96, 97},
	)

	blocks := DetectOrderBlocks(candles)

	if len(blocks) != 1 || blocks[0].Type != BearishOrderBlock {
		t.Fatalf("Expected 1 bearish order block, got %+v", blocks)
	}
}

// TestOrderBlockNeedsFollowThrough tests that k2 must continue the move
func TestOrderBlockNeedsFollowThrough(t *testing.T) {
	candles := series(
		bar{100, 101, 97, 98},
		bar{98, 103, 97.5, 102},
		bar{102, 102.5, 100, 100.5}, // closes down
	)

	if blocks := DetectOrderBlocks(candles); len(blocks) != 0 {
		t.Errorf("Expected no order block, got %+v", blocks)
	}
}

// TestBuildLiquidityPools tests pool ordering and priority tagging
func TestBuildLiquidityPools(t *testing.T) {
	highs := swings(SwingHigh, 101, 102, 103, 104, 105, 106)
	lows := swings(SwingLow, 90, 91)
	eqHighs := []EqualLevelCluster{{Price: 107, Touches: 3, Indices: []int{20, 24, 28}}}

	pools := BuildLiquidityPools(highs, lows, eqHighs, nil)

	if len(pools.BuySide) != 6 {
		t.Fatalf("Expected 5 swing pools plus 1 cluster, got %d", len(pools.BuySide))
	}
	if pools.BuySide[0].Level != 106 || pools.BuySide[0].Priority != PriorityHigh {
		t.Errorf("Expected newest swing high 106 first at high priority, got %+v", pools.BuySide[0])
	}
	for _, p := range pools.BuySide[1:5] {
		if p.Priority != PriorityMedium || p.Kind != PoolSwingHigh {
			t.Errorf("Expected older swing pools at medium priority, got %+v", p)
		}
	}
	if pools.BuySide[4].Level != 102 {
		t.Errorf("Expected the fifth most recent swing 102, got %f", pools.BuySide[4].Level)
	}
	eq := pools.BuySide[5]
	if eq.Kind != PoolEqualHigh || eq.Priority != PriorityHigh || eq.Touches != 3 || eq.Index != 20 {
		t.Errorf("Unexpected equal-high pool %+v", eq)
	}

	if len(pools.SellSide) != 2 || pools.SellSide[0].Level != 91 {
		t.Errorf("Expected sell side [91 90], got %+v", pools.SellSide)
	}
	if len(pools.All()) != 8 {
		t.Errorf("Expected 8 pools in total, got %d", len(pools.All()))
	}
}

// TestLiquidityPoolsForDirection tests side selection
func TestLiquidityPoolsForDirection(t *testing.T) {
	pools := LiquidityPools{
		BuySide:  []LiquidityPool{{Level: 110}},
		SellSide: []LiquidityPool{{Level: 90}},
	}

	if got := pools.ForDirection(DirectionLong); len(got) != 1 || got[0].Level != 90 {
		t.Errorf("Longs sweep sell-side liquidity, got %+v", got)
	}
	if got := pools.Targets(DirectionLong); len(got) != 1 || got[0].Level != 110 {
		t.Errorf("Longs target buy-side liquidity, got %+v", got)
	}
	if got := pools.ForDirection(DirectionNeutral); got != nil {
		t.Errorf("Neutral has no pools, got %+v", got)
	}
}
