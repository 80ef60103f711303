package analysis

import (
	"math"
	"testing"
)

func sellSide(levels ...float64) LiquidityPools {
	pools := LiquidityPools{}
	for i, l := range levels {
		p := PriorityMedium
		if i == 0 {
			p = PriorityHigh
		}
		pools.SellSide = append(pools.SellSide, LiquidityPool{Kind: PoolSwingLow, Level: l, Priority: p})
	}
	return pools
}

// TestDetectSellSideSweep tests a long-side sweep with follow-through
func TestDetectSellSideSweep(t *testing.T) {
	detector := NewSweepDetector(DefaultSweepConfig())
	candles := series(
		bar{101, 101.5, 100.5, 101.2},
		bar{101.2, 101.6, 100.6, 101},
		bar{100.8, 101.1, 99.5, 101}, // wick to 99.5, close back above 100
		bar{101, 101.7, 100.9, 101.5},
		bar{101.5, 101.8, 101.2, 101.4},
	)

	result := detector.Detect(candles, DirectionLong, sellSide(100))

	if !result.Detected || result.Event == nil {
		t.Fatalf("Expected a sweep, got %+v", result)
	}
	ev := result.Event
	if ev.Kind != SellSideSweep {
		t.Errorf("Expected SELL_SIDE, got %s", ev.Kind)
	}
	if ev.CandleIndex != 2 {
		t.Errorf("Expected sweep at index 2, got %d", ev.CandleIndex)
	}
	if math.Abs(ev.WickToBodyRatio-6.5) > 1e-6 {
		t.Errorf("Expected wick/body 6.5, got %f", ev.WickToBodyRatio)
	}
	if math.Abs(ev.SweepPercent-0.5) > 1e-9 {
		t.Errorf("Expected sweep depth 0.5%%, got %f", ev.SweepPercent)
	}
	if !ev.Confirmed || !result.Confirmed() {
		t.Error("Expected the sweep to be confirmed by the next up close")
	}
	if result.PoolLevel != 100 || result.CandlesChecked != 3 {
		t.Errorf("Expected pool 100 after 3 candles, got %f after %d", result.PoolLevel, result.CandlesChecked)
	}
}

// TestSweepWickRatioBoundary tests that a wick of exactly twice the body is rejected
func TestSweepWickRatioBoundary(t *testing.T) {
	detector := NewSweepDetector(DefaultSweepConfig())

	exact := series(bar{101, 102.5, 99, 102}) // body 1, wick 2
	if result := detector.Detect(exact, DirectionLong, sellSide(100)); result.Detected {
		t.Errorf("Wick equal to 2x body should not count, got %+v", result.Event)
	}

	over := series(bar{101, 102.5, 98.99, 102}) // wick 2.01
	if result := detector.Detect(over, DirectionLong, sellSide(100)); !result.Detected {
		t.Errorf("Wick above 2x body should count, got reason %s", result.Reason)
	}
}

// TestSweepDepthBoundary tests the minimum penetration below the pool
func TestSweepDepthBoundary(t *testing.T) {
	detector := NewSweepDetector(DefaultSweepConfig())

	shallow := series(bar{100.01, 100.05, 99.91, 100.03}) // 0.09% through
	if result := detector.Detect(shallow, DirectionLong, sellSide(100)); result.Detected {
		t.Errorf("0.09%% sweep should be rejected, got %+v", result.Event)
	}

	deep := series(bar{100.01, 100.05, 99.89, 100.03}) // 0.11% through
	if result := detector.Detect(deep, DirectionLong, sellSide(100)); !result.Detected {
		t.Errorf("0.11%% sweep should be accepted, got reason %s", result.Reason)
	}
}

// TestSweepRequiresReclaim tests that closing beyond the pool is not a sweep
func TestSweepRequiresReclaim(t *testing.T) {
	detector := NewSweepDetector(DefaultSweepConfig())
	candles := series(bar{100.2, 100.3, 98, 99.9})

	result := detector.Detect(candles, DirectionLong, sellSide(100))
	if result.Detected {
		t.Errorf("Close below the pool should not count, got %+v", result.Event)
	}
	if result.Reason != ReasonNoValidSweep {
		t.Errorf("Expected reason %s, got %s", ReasonNoValidSweep, result.Reason)
	}
}

// TestSweepZeroBody tests that doji candles are skipped
func TestSweepZeroBody(t *testing.T) {
	detector := NewSweepDetector(DefaultSweepConfig())
	candles := series(bar{100.5, 100.6, 99, 100.5})

	if result := detector.Detect(candles, DirectionLong, sellSide(100)); result.Detected {
		t.Errorf("Zero-body candle should not count, got %+v", result.Event)
	}
}

// TestSweepNoPool tests the missing pool reason
func TestSweepNoPool(t *testing.T) {
	detector := NewSweepDetector(DefaultSweepConfig())
	result := detector.Detect(series(flat(5, 100)...), DirectionLong, LiquidityPools{})

	if result.Detected || result.Reason != ReasonNoLiquidityPool {
		t.Errorf("Expected %s, got %+v", ReasonNoLiquidityPool, result)
	}
}

// TestSweepNotDetectedDiagnostics tests the not-detected payload
func TestSweepNotDetectedDiagnostics(t *testing.T) {
	detector := NewSweepDetector(DefaultSweepConfig())
	result := detector.Detect(series(flat(8, 101)...), DirectionLong, sellSide(100))

	if result.Detected {
		t.Fatal("Expected no sweep")
	}
	if result.Reason != ReasonNoValidSweep {
		t.Errorf("Expected reason %s, got %s", ReasonNoValidSweep, result.Reason)
	}
	if result.PoolLevel != 100 {
		t.Errorf("Expected pool level 100, got %f", result.PoolLevel)
	}
	if result.CandlesChecked != 5 {
		t.Errorf("Expected 5 candles checked, got %d", result.CandlesChecked)
	}
}

// TestDetectBuySideSweep tests the short-side mirror
func TestDetectBuySideSweep(t *testing.T) {
	detector := NewSweepDetector(DefaultSweepConfig())
	pools := LiquidityPools{BuySide: []LiquidityPool{{Kind: PoolSwingHigh, Level: 100, Priority: PriorityHigh}}}
	candles := series(
		bar{99.2, 100.5, 98.9, 99}, // wick to 100.5, close back below
		bar{99, 99.1, 98.5, 98.6},
	)

	result := detector.Detect(candles, DirectionShort, pools)

	if !result.Detected {
		t.Fatalf("Expected a buy-side sweep, got reason %s", result.Reason)
	}
	if result.Event.Kind != BuySideSweep {
		t.Errorf("Expected BUY_SIDE, got %s", result.Event.Kind)
	}
	if result.Event.Extreme != 100.5 {
		t.Errorf("Expected extreme 100.5, got %f", result.Event.Extreme)
	}
	if !result.Event.Confirmed {
		t.Error("Expected a down close to confirm")
	}
}

// TestSweepUnconfirmedOnLastCandle tests that a sweep with no follow-up is unconfirmed
func TestSweepUnconfirmedOnLastCandle(t *testing.T) {
	detector := NewSweepDetector(DefaultSweepConfig())
	candles := series(
		bar{101, 101.5, 100.5, 101.2},
		bar{100.8, 101.1, 99.5, 101},
	)

	result := detector.Detect(candles, DirectionLong, sellSide(100))
	if !result.Detected {
		t.Fatal("Expected a sweep")
	}
	if result.Confirmed() {
		t.Error("Expected no confirmation without follow-up candles")
	}
}

// TestSelectPool tests high-priority pool preference
func TestSelectPool(t *testing.T) {
	pools := []LiquidityPool{
		{Level: 95, Priority: PriorityMedium},
		{Level: 100, Priority: PriorityHigh},
	}
	if p, ok := SelectPool(pools); !ok || p.Level != 100 {
		t.Errorf("Expected the high-priority pool at 100, got %+v", p)
	}

	pools[1].Priority = PriorityMedium
	if p, ok := SelectPool(pools); !ok || p.Level != 95 {
		t.Errorf("Expected the first pool at 95, got %+v", p)
	}

	if _, ok := SelectPool(nil); ok {
		t.Error("Expected no pool from an empty list")
	}
}

// TestSweepNeutralDirection tests that a neutral bias never sweeps
func TestSweepNeutralDirection(t *testing.T) {
	detector := NewSweepDetector(SweepConfig{})
	result := detector.Detect(series(flat(5, 100)...), DirectionNeutral, sellSide(100))
	if result.Detected || result.Reason != ReasonNoDirection {
		t.Errorf("Expected %s, got %+v", ReasonNoDirection, result)
	}
}
