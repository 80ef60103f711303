package scanner

import (
	"time"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/signals"
	"smc-signal-engine/internal/strategy"
)

// Status is the per-symbol result of a scan
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusFiltered Status = "FILTERED"
	StatusSkipped  Status = "SKIPPED"
	StatusError    Status = "ERROR"
)

// ReasonDuplicateActiveSignal marks a signal dropped because the symbol and
// direction already hold an ACTIVE one
const ReasonDuplicateActiveSignal = "DUPLICATE_ACTIVE_SIGNAL"

// SymbolResult is the outcome of one symbol pipeline
type SymbolResult struct {
	Symbol     string               `json:"symbol"`
	Status     Status               `json:"status"`
	Reason     string               `json:"reason,omitempty"`
	Error      string               `json:"error,omitempty"`
	Signal     *signals.Signal      `json:"signal,omitempty"`
	Evaluation *strategy.Evaluation `json:"evaluation,omitempty"`
	Duration   time.Duration        `json:"duration"`
}

// ScanReport aggregates the results of one scan cycle
type ScanReport struct {
	ScanID         string         `json:"scan_id"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Duration       time.Duration  `json:"duration"`
	SymbolsScanned int            `json:"symbols_scanned"`
	Created        int            `json:"created"`
	Filtered       int            `json:"filtered"`
	Skipped        int            `json:"skipped"`
	Errors         int            `json:"errors"`
	Expired        int            `json:"expired"`
	Triggered      int            `json:"triggered"`
	Invalidated    int            `json:"invalidated"`
	Results        []SymbolResult `json:"results"`
}

// Signals returns the signals created in this scan
func (r *ScanReport) Signals() []*signals.Signal {
	var out []*signals.Signal
	for _, res := range r.Results {
		if res.Status == StatusSuccess && res.Signal != nil {
			out = append(out, res.Signal)
		}
	}
	return out
}

func (r *ScanReport) count(res SymbolResult) {
	switch res.Status {
	case StatusSuccess:
		r.Created++
	case StatusFiltered:
		r.Filtered++
	case StatusSkipped:
		r.Skipped++
	case StatusError:
		r.Errors++
	}
}

// Config holds scanner configuration
type Config struct {
	Enabled       bool
	ScanInterval  time.Duration
	Symbols       []string // Empty scans every symbol of the data source
	MaxSymbols    int
	WorkerCount   int
	SymbolTimeout time.Duration
	CacheTTL      time.Duration
	Tiers         Tiers
}

// ConfigFromApp maps the application configuration onto the scanner
func ConfigFromApp(cfg *config.Config) Config {
	s := cfg.ScannerConfig
	return Config{
		Enabled:       s.Enabled,
		ScanInterval:  s.ScanInterval,
		Symbols:       s.Symbols,
		MaxSymbols:    s.MaxSymbols,
		WorkerCount:   s.WorkerCount,
		SymbolTimeout: s.SymbolTimeout,
		CacheTTL:      s.CacheTTL,
		Tiers: Tiers{
			Strategic: cfg.StrategyConfig.StrategicInterval,
			Tactical:  cfg.StrategyConfig.TacticalInterval,
			Execution: cfg.StrategyConfig.ExecutionInterval,
			Limit:     cfg.StrategyConfig.CandleLimit,
		},
	}
}
