// Package signals holds trade signals, their lifecycle and the stores that
// persist them.
package signals

import (
	"errors"
	"fmt"
	"time"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/confluence"
)

// Status is the lifecycle state of a signal
type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusTriggered   Status = "TRIGGERED"
	StatusExpired     Status = "EXPIRED"
	StatusInvalidated Status = "INVALIDATED"
)

var (
	ErrSignalNotFound     = errors.New("signal not found")
	ErrActiveSignalExists = errors.New("active signal already exists for symbol and direction")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnknownStatus      = errors.New("unknown signal status")
)

var transitions = map[Status][]Status{
	StatusActive:    {StatusTriggered, StatusExpired, StatusInvalidated},
	StatusTriggered: {StatusExpired, StatusInvalidated},
}

// ParseStatus validates a status string
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusTriggered, StatusExpired, StatusInvalidated:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// CanTransition reports whether from may move to to
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Check is one step of the evidence chain behind a decision
type Check struct {
	Name    string             `json:"name"`
	Passed  bool               `json:"passed"`
	Detail  string             `json:"detail,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Signal is an immutable trade signal snapshot. Only Status and UpdatedAt
// change after creation, and only through a Store.
type Signal struct {
	ID              string             `json:"id"`
	Symbol          string             `json:"symbol"`
	Direction       analysis.Direction `json:"direction"`
	EntryPrice      float64            `json:"entry_price"`
	StopLoss        float64            `json:"stop_loss"`
	TakeProfit      []float64          `json:"take_profit"`
	RiskRewardRatio float64            `json:"risk_reward_ratio"`
	Score           float64            `json:"score"`
	Rating          confluence.Rating  `json:"rating"`
	Status          Status             `json:"status"`
	PositionSize    float64            `json:"position_size"`
	Leverage        int                `json:"leverage"`
	Evidence        []Check            `json:"evidence"`
	CreatedAt       time.Time          `json:"created_at"`
	ExpiresAt       time.Time          `json:"expires_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Clone returns a deep copy
func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}
	c := *s
	c.TakeProfit = append([]float64(nil), s.TakeProfit...)
	c.Evidence = make([]Check, len(s.Evidence))
	for i, ch := range s.Evidence {
		c.Evidence[i] = ch
		if ch.Metrics != nil {
			c.Evidence[i].Metrics = make(map[string]float64, len(ch.Metrics))
			for k, v := range ch.Metrics {
				c.Evidence[i].Metrics[k] = v
			}
		}
	}
	return &c
}

// Expired reports whether the signal's TTL has elapsed at now
func (s *Signal) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// activeKey identifies the at-most-one ACTIVE slot of a signal
func activeKey(symbol string, d analysis.Direction) string {
	return symbol + ":" + string(d)
}

// Transition validates and applies a status change in place. Stores call it
// on their own copy.
func (s *Signal) Transition(to Status, now time.Time) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

// PriceStatus returns the status a live price implies for the signal. An
// ACTIVE signal triggers when price reaches entry and is invalidated when price
// reaches the stop first; a TRIGGERED signal is invalidated at the stop.
func PriceStatus(s *Signal, price float64) (Status, bool) {
	if price <= 0 {
		return s.Status, false
	}
	long := s.Direction == analysis.DirectionLong
	hitStop := (long && price <= s.StopLoss) || (!long && price >= s.StopLoss)
	hitEntry := (long && price >= s.EntryPrice) || (!long && price <= s.EntryPrice)

	switch s.Status {
	case StatusActive:
		if hitStop {
			return StatusInvalidated, true
		}
		if hitEntry {
			return StatusTriggered, true
		}
	case StatusTriggered:
		if hitStop {
			return StatusInvalidated, true
		}
	}
	return s.Status, false
}
