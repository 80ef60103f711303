package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/confluence"
	"smc-signal-engine/internal/patterns"
	"smc-signal-engine/internal/risk"
	"smc-signal-engine/internal/signals"
)

// Outcome is the final decision for one symbol evaluation
type Outcome string

const (
	OutcomeSignal   Outcome = "SIGNAL"
	OutcomeFiltered Outcome = "FILTERED"
	OutcomeBlocked  Outcome = "BLOCKED"
)

// Filter reasons raised after the gate
const (
	ReasonPriceRanging      = patterns.PauseReasonRanging
	ReasonNoStopLevel       = "NO_STOP_LEVEL"
	ReasonInvalidStopLevel  = "INVALID_STOP_LEVEL"
	ReasonScoreBelowMinimum = "SCORE_BELOW_MINIMUM"
	ReasonRiskCheckFailed   = risk.ReasonRiskCheckFailed
)

const (
	maxTargets      = 3
	stopBuffer      = 0.001
	volumeAvgPeriod = 20
)

var ErrNoData = errors.New("no market data")

// Config holds the engine thresholds
type Config struct {
	SwingLookback       int
	EqualLevelTolerance float64 // percent
	MinFVGPercent       float64
	StrictAlignment     bool
	MinQuoteVolume24h   float64
	MinScore            float64
	AccountBalance      float64
	SignalTTL           time.Duration
	Risk                risk.Config
}

// DefaultConfig returns the standard engine configuration
func DefaultConfig() Config {
	return Config{
		SwingLookback:       3,
		EqualLevelTolerance: 0.1,
		MinFVGPercent:       0.1,
		AccountBalance:      10000,
		SignalTTL:           4 * time.Hour,
		Risk:                risk.DefaultConfig(),
	}
}

// ConfigFromApp maps the application configuration onto the engine
func ConfigFromApp(cfg *config.Config) Config {
	s := cfg.StrategyConfig
	r := cfg.RiskConfig
	return Config{
		SwingLookback:       s.SwingLookback,
		EqualLevelTolerance: s.EqualLevelTolerance,
		MinFVGPercent:       s.MinFVGPercent,
		StrictAlignment:     s.StrictAlignment,
		MinQuoteVolume24h:   s.MinQuoteVolume24h,
		MinScore:            s.MinScore,
		AccountBalance:      r.AccountBalance,
		SignalTTL:           cfg.SignalsConfig.TTL,
		Risk: risk.Config{
			RiskPerTradePercent: r.RiskPerTradePercent,
			MinRiskReward:       r.MinRiskReward,
			MinStopPercent:      r.MinStopPercent,
			MaxStopPercent:      r.MaxStopPercent,
			DefaultLeverage:     r.DefaultLeverage,
		},
	}
}

// EvalContext carries the per-call inputs that are not market data.
// Zero values fall back to the wall clock and the configured balance.
type EvalContext struct {
	Now            time.Time
	AccountBalance float64
}

// Evaluation is everything the engine decided about one symbol
type Evaluation struct {
	Symbol      string                `json:"symbol"`
	Direction   analysis.Direction    `json:"direction"`
	Strategic   *TimeframeVerdict     `json:"strategic"`
	Tactical    *TimeframeVerdict     `json:"tactical"`
	Execution   *TimeframeVerdict     `json:"execution"`
	Gate        GateResult            `json:"gate"`
	HiLo        *patterns.HiLoResult  `json:"hilo,omitempty"`
	Scorecard   *confluence.Scorecard `json:"scorecard,omitempty"`
	Risk        *risk.Assessment      `json:"risk,omitempty"`
	EntryPrice  float64               `json:"entry_price,omitempty"`
	StopLoss    float64               `json:"stop_loss,omitempty"`
	TakeProfit  []float64             `json:"take_profit,omitempty"`
	RiskReward  float64               `json:"risk_reward,omitempty"`
	Outcome     Outcome               `json:"outcome"`
	Reason      string                `json:"reason,omitempty"`
	Evidence    []signals.Check       `json:"evidence"`
	Signal      *signals.Signal       `json:"signal,omitempty"`
	EvaluatedAt time.Time             `json:"evaluated_at"`
}

func (ev *Evaluation) check(name string, passed bool, detail string, metrics map[string]float64) {
	ev.Evidence = append(ev.Evidence, signals.Check{Name: name, Passed: passed, Detail: detail, Metrics: metrics})
}

func (ev *Evaluation) finish(o Outcome, reason string) *Evaluation {
	ev.Outcome = o
	ev.Reason = reason
	return ev
}

// Engine runs the multi-timeframe pipeline for a single symbol. It keeps no
// per-call state and may be shared across goroutines.
type Engine struct {
	cfg      Config
	analyzer *Analyzer
	scorer   *confluence.SignalScorer
	riskGate *risk.Gate
	volume   *analysis.VolumeAnalyzer
	newID    func() string
}

// NewEngine creates an engine
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.SignalTTL <= 0 {
		cfg.SignalTTL = def.SignalTTL
	}
	if cfg.AccountBalance <= 0 {
		cfg.AccountBalance = def.AccountBalance
	}

	scorer := confluence.NewSignalScorer()
	scorer.SetMinimumScore(cfg.MinScore)

	return &Engine{
		cfg:      cfg,
		analyzer: NewAnalyzer(cfg.SwingLookback, cfg.EqualLevelTolerance, cfg.MinFVGPercent),
		scorer:   scorer,
		riskGate: risk.NewGate(cfg.Risk),
		volume:   analysis.NewVolumeAnalyzer(volumeAvgPeriod),
		newID:    uuid.NewString,
	}
}

// SetIDGenerator replaces the signal ID generator
func (e *Engine) SetIDGenerator(fn func() string) {
	if fn != nil {
		e.newID = fn
	}
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate analyses the three tiers of one symbol and decides whether they
// produce a signal. Malformed candles fail fast with an error wrapping
// analysis.ErrMalformedCandle; every other rejection is reported through
// the evaluation's outcome and reason.
func (e *Engine) Evaluate(symbol string, data *MultiTimeframeData, ec EvalContext) (*Evaluation, error) {
	if data == nil {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	for _, tier := range []struct {
		tier    Tier
		candles []binance.Kline
	}{
		{TierStrategic, data.Strategic},
		{TierTactical, data.Tactical},
		{TierExecution, data.Execution},
	} {
		if err := analysis.ValidateCandles(tier.candles); err != nil {
			return nil, fmt.Errorf("%s %s candles: %w", symbol, tier.tier, err)
		}
	}

	now := ec.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	balance := ec.AccountBalance
	if balance <= 0 {
		balance = e.cfg.AccountBalance
	}

	ev := &Evaluation{Symbol: symbol, Direction: analysis.DirectionNeutral, EvaluatedAt: now}

	htf := e.analyzer.AnalyzeStrategic(data.Strategic)
	mtf := e.analyzer.AnalyzeTactical(data.Tactical, htf)
	ltf := e.analyzer.AnalyzeExecution(data.Execution, htf, mtf)
	ev.Strategic, ev.Tactical, ev.Execution = htf, mtf, ltf
	ev.HiLo = ltf.HiLo
	ev.Direction = htf.Direction

	e.recordTiers(ev)

	ev.Gate = EvaluateGate(htf, mtf, ltf, e.cfg.StrictAlignment)
	ev.check("alignment_gate", ev.Gate.Passed, ev.Gate.BlockReason, nil)
	if ev.Gate.Blocked {
		return ev.finish(OutcomeBlocked, ev.Gate.BlockReason), nil
	}

	dir := htf.Direction
	entry, stop, reason := e.plan(dir, ltf)
	if reason != "" {
		ev.check("trade_plan", false, reason, nil)
		return ev.finish(OutcomeFiltered, reason), nil
	}
	targets := e.targets(dir, entry, stop, mtf, htf)
	ratio := risk.RewardRatio(entry, stop, targets[0])
	rrr := risk.RiskReward(entry, stop, targets[0])
	ev.EntryPrice, ev.StopLoss, ev.TakeProfit, ev.RiskReward = entry, stop, targets, rrr
	ev.check("trade_plan", true, fmt.Sprintf("entry %.6g stop %.6g tp1 %.6g", entry, stop, targets[0]), map[string]float64{
		"entry":       entry,
		"stop":        stop,
		"tp1":         targets[0],
		"risk_reward": rrr,
	})

	profile := e.volume.AnalyzeVolume(data.Execution)
	lowLiquidity := analysis.IsLowLiquidity(profile, data.QuoteVolume24h, e.cfg.MinQuoteVolume24h)
	ev.Scorecard = e.scorer.Score(confluence.Inputs{
		GatePassed:     ev.Gate.Passed,
		SweepConfirmed: ltf.Sweep != nil && ltf.Sweep.Confirmed(),
		HiLoValid:      ltf.HiLo != nil && ltf.HiLo.Valid,
		StrongClose:    mtf.StrongClose,
		HighConfidence: htf.Confidence == ConfidenceHigh,
		LowLiquidity:   lowLiquidity,
		WeakChoCH:      mtf.ChoCH != nil && mtf.ChoCH.StrengthPercent < confluence.WeakChoCHPercent,
		EntryPrice:     entry,
		CurrentPrice:   ltf.CurrentPrice,
	})
	ev.check("score", true, string(ev.Scorecard.Rating), map[string]float64{"score": ev.Scorecard.Score})

	ev.Risk = e.riskGate.Assess(entry, stop, ratio, balance)
	ev.check("risk", ev.Risk.Allowed(), ev.Risk.Detail, map[string]float64{
		"risk_reward":           ev.Risk.RiskReward,
		"stop_distance_percent": ev.Risk.StopDistancePercent,
	})
	if !ev.Risk.Allowed() {
		return ev.finish(OutcomeBlocked, ReasonRiskCheckFailed), nil
	}

	if !e.scorer.ShouldPublish(ev.Scorecard) {
		return ev.finish(OutcomeFiltered, ReasonScoreBelowMinimum), nil
	}

	ev.Signal = &signals.Signal{
		ID:              e.newID(),
		Symbol:          symbol,
		Direction:       dir,
		EntryPrice:      entry,
		StopLoss:        stop,
		TakeProfit:      append([]float64(nil), targets...),
		RiskRewardRatio: rrr,
		Score:           ev.Scorecard.Score,
		Rating:          ev.Scorecard.Rating,
		Status:          signals.StatusActive,
		PositionSize:    ev.Risk.PositionSize,
		Leverage:        ev.Risk.Leverage,
		Evidence:        append([]signals.Check(nil), ev.Evidence...),
		CreatedAt:       now,
		ExpiresAt:       now.Add(e.cfg.SignalTTL),
		UpdatedAt:       now,
	}
	return ev.finish(OutcomeSignal, ""), nil
}

func (e *Engine) recordTiers(ev *Evaluation) {
	htf, mtf, ltf := ev.Strategic, ev.Tactical, ev.Execution

	ev.check("strategic_trend", htf.Valid && htf.Direction != analysis.DirectionNeutral,
		tierDetail(htf, string(htf.Trend)), map[string]float64{
			"sma":               htf.SMA,
			"rsi":               htf.RSI,
			"deviation_percent": htf.DeviationPercent,
		})
	ev.check("tactical_alignment", mtf.Valid && mtf.Aligned, tierDetail(mtf, breakName(mtf.ChoCH, mtf.BOS)), nil)
	ev.check("tactical_poi", mtf.Valid && mtf.InZone, tierDetail(mtf, ""), map[string]float64{"price": mtf.CurrentPrice})
	ev.check("execution_alignment", ltf.Valid && ltf.Aligned, tierDetail(ltf, breakName(ltf.ChoCH, ltf.InternalBOS)), nil)
	ev.check("entry_zone", ltf.Valid && ltf.InZone, tierDetail(ltf, ""), map[string]float64{"price": ltf.CurrentPrice})

	if ltf.Sweep != nil {
		s := ltf.Sweep
		metrics := map[string]float64{"pool_level": s.PoolLevel, "candles_checked": float64(s.CandlesChecked)}
		detail := s.Reason
		if s.Detected {
			detail = string(s.Event.Kind)
			metrics["sweep_percent"] = s.Event.SweepPercent
			metrics["wick_to_body"] = s.Event.WickToBodyRatio
		}
		ev.check("liquidity_sweep", s.Detected, detail, metrics)
	}
	if ltf.HiLo != nil {
		h := ltf.HiLo
		ev.check("hilo_two", h.Valid, string(h.State)+pauseSuffix(h), map[string]float64{"range_percent": h.RangePercent})
	}
}

func tierDetail(v *TimeframeVerdict, detail string) string {
	if !v.Valid {
		return v.Reason
	}
	if detail == "" {
		return string(v.Direction)
	}
	return string(v.Direction) + " " + detail
}

func breakName(primary, secondary *analysis.StructuralBreak) string {
	if primary != nil {
		return string(primary.Kind)
	}
	if secondary != nil {
		return string(secondary.Kind)
	}
	return ""
}

func pauseSuffix(h *patterns.HiLoResult) string {
	if h.CountingPaused {
		return " " + h.PauseReason
	}
	return ""
}

// plan derives entry and stop. A completed count supplies both; otherwise
// the entry is the current close and the stop sits beyond the sweep
// extreme, or the latest execution swing when no sweep was seen.
func (e *Engine) plan(dir analysis.Direction, ltf *TimeframeVerdict) (entry, stop float64, reason string) {
	h := ltf.HiLo
	if h != nil && h.CountingPaused {
		return 0, 0, ReasonPriceRanging
	}
	if h != nil && h.Valid {
		entry, stop = h.EntryPrice, h.StopLoss
	} else {
		entry = ltf.CurrentPrice
		level, ok := stopLevel(dir, ltf)
		if !ok {
			return 0, 0, ReasonNoStopLevel
		}
		if dir == analysis.DirectionLong {
			stop = level * (1 - stopBuffer)
		} else {
			stop = level * (1 + stopBuffer)
		}
	}

	if (dir == analysis.DirectionLong && stop >= entry) || (dir == analysis.DirectionShort && stop <= entry) {
		return 0, 0, ReasonInvalidStopLevel
	}
	return entry, stop, ""
}

func stopLevel(dir analysis.Direction, ltf *TimeframeVerdict) (float64, bool) {
	if ltf.Sweep != nil && ltf.Sweep.Detected && ltf.Sweep.Event != nil {
		return ltf.Sweep.Event.Extreme, true
	}
	swings := ltf.Lows
	if dir == analysis.DirectionShort {
		swings = ltf.Highs
	}
	if len(swings) == 0 {
		return 0, false
	}
	return swings[len(swings)-1].Price, true
}

// targets lists opposing pool levels beyond entry from the tactical and
// strategic tiers, nearest first. Without any it falls back to 2R and 3R.
func (e *Engine) targets(dir analysis.Direction, entry, stop float64, tiers ...*TimeframeVerdict) []float64 {
	var levels []float64
	for _, v := range tiers {
		for _, p := range v.Pools.Targets(dir) {
			if (dir == analysis.DirectionLong && p.Level > entry) || (dir == analysis.DirectionShort && p.Level < entry) {
				levels = append(levels, p.Level)
			}
		}
	}

	if len(levels) == 0 {
		r := math.Abs(entry - stop)
		if dir == analysis.DirectionLong {
			return []float64{entry + 2*r, entry + 3*r}
		}
		return []float64{entry - 2*r, entry - 3*r}
	}

	sort.Slice(levels, func(i, j int) bool {
		return math.Abs(levels[i]-entry) < math.Abs(levels[j]-entry)
	})
	out := make([]float64, 0, maxTargets)
	for _, l := range levels {
		if len(out) > 0 && out[len(out)-1] == l {
			continue
		}
		out = append(out, l)
		if len(out) == maxTargets {
			break
		}
	}
	return out
}

// HasActiveDuplicate reports whether the store already holds an ACTIVE
// signal for the symbol and direction
func (e *Engine) HasActiveDuplicate(ctx context.Context, store signals.Store, symbol string, dir analysis.Direction) (bool, error) {
	_, err := store.FindActive(ctx, symbol, dir)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, signals.ErrSignalNotFound):
		return false, nil
	}
	return false, fmt.Errorf("find active %s %s: %w", symbol, dir, err)
}
