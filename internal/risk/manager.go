package risk

import (
	"fmt"
	"math"
)

// Status is the verdict of the risk gate
type Status string

const (
	StatusAllow Status = "ALLOW"
	StatusBlock Status = "BLOCK"
)

// ReasonRiskCheckFailed is reported for every blocked assessment
const ReasonRiskCheckFailed = "RISK_CHECK_FAILED"

// Config holds risk gate configuration
type Config struct {
	RiskPerTradePercent float64 // Percentage of account to risk per trade
	MinRiskReward       float64 // Minimum reward to risk ratio to TP1
	MinStopPercent      float64 // Stop distance must be above this
	MaxStopPercent      float64 // Stop distance must be below this
	DefaultLeverage     int     // Leverage cap
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		RiskPerTradePercent: 1.0,
		MinRiskReward:       2.0,
		MinStopPercent:      0.5,
		MaxStopPercent:      10.0,
		DefaultLeverage:     10,
	}
}

// Assessment is the outcome of a risk check
type Assessment struct {
	Status              Status  `json:"status"`
	Reason              string  `json:"reason,omitempty"`
	Detail              string  `json:"detail,omitempty"`
	RiskReward          float64 `json:"risk_reward"`
	StopDistancePercent float64 `json:"stop_distance_percent"`
	RiskAmount          float64 `json:"risk_amount"`
	PositionSize        float64 `json:"position_size"`
	Leverage            int     `json:"leverage"`
}

// Allowed reports whether the assessment passed
func (a *Assessment) Allowed() bool {
	return a != nil && a.Status == StatusAllow
}

// Gate checks reward to risk and stop distance, then sizes the position
type Gate struct {
	config Config
}

// NewGate creates a risk gate, falling back to defaults for unset fields
func NewGate(config Config) *Gate {
	def := DefaultConfig()
	if config.RiskPerTradePercent <= 0 {
		config.RiskPerTradePercent = def.RiskPerTradePercent
	}
	if config.MinRiskReward <= 0 {
		config.MinRiskReward = def.MinRiskReward
	}
	if config.MinStopPercent <= 0 {
		config.MinStopPercent = def.MinStopPercent
	}
	if config.MaxStopPercent <= 0 {
		config.MaxStopPercent = def.MaxStopPercent
	}
	if config.DefaultLeverage <= 0 {
		config.DefaultLeverage = def.DefaultLeverage
	}
	return &Gate{config: config}
}

// Config returns the effective configuration
func (g *Gate) Config() Config {
	return g.config
}

// Assess checks a trade plan against the gate. rrr must be the unrounded
// ratio from RewardRatio. The stop distance bounds are exclusive.
func (g *Gate) Assess(entry, stop, rrr, balance float64) *Assessment {
	a := &Assessment{RiskReward: roundRatio(rrr)}

	if entry <= 0 || stop <= 0 || entry == stop {
		a.Status = StatusBlock
		a.Reason = ReasonRiskCheckFailed
		a.Detail = "invalid entry or stop"
		return a
	}

	a.StopDistancePercent = math.Abs(entry-stop) * 100 / entry
	d := a.StopDistancePercent / 100

	if rrr < g.config.MinRiskReward {
		a.Status = StatusBlock
		a.Reason = ReasonRiskCheckFailed
		a.Detail = fmt.Sprintf("risk reward %.4f below %.2f", rrr, g.config.MinRiskReward)
		return a
	}
	if a.StopDistancePercent <= g.config.MinStopPercent || a.StopDistancePercent >= g.config.MaxStopPercent {
		a.Status = StatusBlock
		a.Reason = ReasonRiskCheckFailed
		a.Detail = fmt.Sprintf("stop distance %.2f%% outside (%.2f%%, %.2f%%)",
			a.StopDistancePercent, g.config.MinStopPercent, g.config.MaxStopPercent)
		return a
	}

	a.Status = StatusAllow
	a.RiskAmount = balance * g.config.RiskPerTradePercent / 100
	a.PositionSize = a.RiskAmount / (entry * d)
	a.Leverage = g.config.DefaultLeverage
	if maxLev := int(math.Floor(1 / d)); maxLev < a.Leverage {
		a.Leverage = maxLev
	}
	return a
}

// RewardRatio returns reward to risk for a target
func RewardRatio(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}

// RiskReward is RewardRatio rounded to 2 decimals for display
func RiskReward(entry, stop, target float64) float64 {
	return roundRatio(RewardRatio(entry, stop, target))
}

func roundRatio(r float64) float64 {
	return math.Round(r*100) / 100
}
