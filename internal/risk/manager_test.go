package risk

import (
	"math"
	"testing"
)

// TestAssessAllows tests sizing and leverage for an acceptable plan
func TestAssessAllows(t *testing.T) {
	gate := NewGate(DefaultConfig())

	// 2% stop distance
	a := gate.Assess(100, 98, 2.5, 10000)

	if !a.Allowed() {
		t.Fatalf("Expected ALLOW, got %s (%s)", a.Status, a.Detail)
	}
	if math.Abs(a.StopDistancePercent-2) > 1e-9 {
		t.Errorf("Expected stop distance 2%%, got %f", a.StopDistancePercent)
	}
	if math.Abs(a.PositionSize-50) > 1e-9 {
		t.Errorf("Expected size 50 units (100 risk / 2 per unit), got %f", a.PositionSize)
	}
	if a.Leverage != 10 {
		t.Errorf("Expected leverage capped at default 10, got %d", a.Leverage)
	}
}

// TestAssessLeverageFromStop tests that wide stops reduce leverage
func TestAssessLeverageFromStop(t *testing.T) {
	gate := NewGate(Config{DefaultLeverage: 20})

	// 8% stop: floor(1/0.08) = 12
	a := gate.Assess(100, 108, 3, 1000)
	if !a.Allowed() {
		t.Fatalf("Expected ALLOW, got %s", a.Detail)
	}
	if a.Leverage != 12 {
		t.Errorf("Expected leverage 12, got %d", a.Leverage)
	}
}

// TestAssessBlocks tests every blocking rule
func TestAssessBlocks(t *testing.T) {
	gate := NewGate(DefaultConfig())

	tests := []struct {
		name  string
		entry float64
		stop  float64
		rrr   float64
	}{
		{"low risk reward", 100, 98, 1.99},
		{"stop exactly at minimum", 100, 99.5, 3},
		{"stop too tight", 100, 99.8, 3},
		{"stop exactly at maximum", 100, 90, 3},
		{"stop too wide", 100, 85, 3},
		{"zero entry", 0, 98, 3},
		{"stop equals entry", 100, 100, 3},
	}

	for _, tt := range tests {
		a := gate.Assess(tt.entry, tt.stop, tt.rrr, 10000)
		if a.Status != StatusBlock || a.Reason != ReasonRiskCheckFailed {
			t.Errorf("%s: expected BLOCK %s, got %s", tt.name, ReasonRiskCheckFailed, a.Status)
		}
		if a.PositionSize != 0 {
			t.Errorf("%s: blocked plans should not be sized", tt.name)
		}
	}
}

// TestRiskReward tests the rounded reward to risk helper
func TestRiskReward(t *testing.T) {
	if rr := RiskReward(100, 98, 104.5); rr != 2.25 {
		t.Errorf("Expected 2.25, got %f", rr)
	}
	if rr := RiskReward(100, 103, 93); rr != 2.33 {
		t.Errorf("Expected 2.33 for a short, got %f", rr)
	}
	if rr := RiskReward(100, 100, 110); rr != 0 {
		t.Errorf("Expected 0 for zero risk, got %f", rr)
	}
}

// TestAssessUsesUnroundedRatio tests that a ratio which only rounds up to the
// minimum is still blocked
func TestAssessUsesUnroundedRatio(t *testing.T) {
	gate := NewGate(DefaultConfig())

	if rr := RiskReward(100, 99, 101.995); rr != 2 {
		t.Fatalf("Expected the display ratio to round to 2.00, got %f", rr)
	}

	a := gate.Assess(100, 99, RewardRatio(100, 99, 101.995), 10000)
	if a.Status != StatusBlock || a.Reason != ReasonRiskCheckFailed {
		t.Errorf("Expected a 1.995 ratio to be blocked, got %s (%s)", a.Status, a.Detail)
	}

	a = gate.Assess(100, 99, RewardRatio(100, 99, 102), 10000)
	if !a.Allowed() {
		t.Errorf("Expected exactly 2.0 to be allowed, got %s (%s)", a.Status, a.Detail)
	}
	if a.RiskReward != 2 {
		t.Errorf("Expected rounded risk reward 2, got %f", a.RiskReward)
	}
}
