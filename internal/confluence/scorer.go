package confluence

import (
	"fmt"
	"math"
)

// Rating is the letter grade attached to a signal
type Rating string

const (
	RatingS Rating = "S"
	RatingA Rating = "A"
	RatingB Rating = "B"
	RatingC Rating = "C"
)

// WeakChoCHPercent is the ChoCH strength below which the break counts as weak
const WeakChoCHPercent = 0.2

// Inputs are the facts the scorer needs about a candidate signal
type Inputs struct {
	GatePassed     bool
	SweepConfirmed bool
	HiLoValid      bool
	StrongClose    bool
	HighConfidence bool // Strategic trend confidence is high
	LowLiquidity   bool
	WeakChoCH      bool
	EntryPrice     float64
	CurrentPrice   float64
}

// Component is one bonus or penalty applied to the score
type Component struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// Scorecard is the scored result of a candidate signal
type Scorecard struct {
	Score      float64     `json:"score"`
	Rating     Rating      `json:"rating"`
	Components []Component `json:"components"`
	Reasoning  []string    `json:"reasoning"`
}

// SignalScorer turns confluence facts into a 0-100 score and rating
type SignalScorer struct {
	base               float64
	gateBonus          float64
	sweepBonus         float64
	hiloBonus          float64
	strongCloseBonus   float64
	confidenceBonus    float64
	liquidityPenalty   float64
	weakChoCHPenalty   float64
	maxDistancePenalty float64

	minScore float64 // Minimum score to publish a signal
}

// NewSignalScorer creates a scorer with the default weights
func NewSignalScorer() *SignalScorer {
	return &SignalScorer{
		base:               70,
		gateBonus:          10,
		sweepBonus:         10,
		hiloBonus:          10,
		strongCloseBonus:   5,
		confidenceBonus:    5,
		liquidityPenalty:   10,
		weakChoCHPenalty:   5,
		maxDistancePenalty: 15,
	}
}

// Score calculates the score, rating and the components that produced it
func (s *SignalScorer) Score(in Inputs) *Scorecard {
	card := &Scorecard{
		Components: make([]Component, 0, 8),
		Reasoning:  make([]string, 0, 8),
	}
	score := s.base

	add := func(name string, points float64, reason string) {
		score += points
		card.Components = append(card.Components, Component{Name: name, Points: points})
		card.Reasoning = append(card.Reasoning, reason)
	}

	if in.GatePassed {
		add("gate_passed", s.gateBonus, "All timeframes aligned")
	}
	if in.SweepConfirmed {
		add("sweep_confirmed", s.sweepBonus, "Liquidity sweep confirmed")
	}
	if in.HiLoValid {
		add("hilo_two", s.hiloBonus, "Hi-Lo-Two entry confirmed")
	}
	if in.StrongClose {
		add("strong_close", s.strongCloseBonus, "Break of structure closed strong")
	}
	if in.HighConfidence {
		add("high_confidence", s.confidenceBonus, "Momentum agrees with the higher timeframe trend")
	}
	if in.LowLiquidity {
		add("low_liquidity", -s.liquidityPenalty, "Thin liquidity")
	}
	if in.WeakChoCH {
		add("weak_choch", -s.weakChoCHPenalty, "Weak change of character")
	}

	if in.CurrentPrice > 0 && in.EntryPrice > 0 {
		distance := math.Abs(in.EntryPrice-in.CurrentPrice) / in.CurrentPrice
		if penalty := math.Min(s.maxDistancePenalty, distance*100); penalty > 0 {
			add("entry_distance", -penalty, fmt.Sprintf("Entry %.2f%% away from price", distance*100))
		}
	}

	card.Score = clamp(score, 0, 100)
	card.Rating = RatingFor(card.Score)
	return card
}

// RatingFor maps a score to a rating; thresholds are inclusive
func RatingFor(score float64) Rating {
	switch {
	case score >= 85:
		return RatingS
	case score >= 70:
		return RatingA
	case score >= 55:
		return RatingB
	}
	return RatingC
}

// ShouldPublish reports whether the scorecard clears the minimum score
func (s *SignalScorer) ShouldPublish(card *Scorecard) bool {
	return card != nil && card.Score >= s.minScore
}

// SetMinimumScore adjusts the minimum required score
func (s *SignalScorer) SetMinimumScore(minScore float64) {
	s.minScore = minScore
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
