package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/metrics"
	"smc-signal-engine/internal/signals"
	"smc-signal-engine/internal/strategy"
)

// Scanner runs the signal pipeline across many symbols on a worker pool
type Scanner struct {
	source  binance.MarketDataSource
	data    *TimeframeManager
	engine  *strategy.Engine
	store   signals.Store
	bus     *events.EventBus
	metrics *metrics.Recorder
	config  Config
	logger  zerolog.Logger
	now     func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	scanMu   sync.Mutex // Serialises scan cycles
	mu       sync.RWMutex
	last     *ScanReport
}

// NewScanner creates a new scanner instance. bus and recorder may be nil.
func NewScanner(
	source binance.MarketDataSource,
	data *TimeframeManager,
	engine *strategy.Engine,
	store signals.Store,
	bus *events.EventBus,
	recorder *metrics.Recorder,
	config Config,
	logger zerolog.Logger,
) *Scanner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = 5 * time.Minute
	}
	if config.SymbolTimeout <= 0 {
		config.SymbolTimeout = 30 * time.Second
	}
	return &Scanner{
		source:   source,
		data:     data,
		engine:   engine,
		store:    store,
		bus:      bus,
		metrics:  recorder,
		config:   config,
		logger:   logging.WithComponent(logger, "scanner"),
		now:      func() time.Time { return time.Now().UTC() },
		stopChan: make(chan struct{}),
	}
}

// SetClock overrides the time source
func (sc *Scanner) SetClock(now func() time.Time) {
	sc.now = now
}

// Start begins the background scan loop
func (sc *Scanner) Start() {
	if !sc.config.Enabled {
		sc.logger.Info().Msg("Scanner is disabled")
		return
	}

	sc.wg.Add(1)
	go sc.runScanLoop()
	sc.logger.Info().Dur("interval", sc.config.ScanInterval).Msg("Scanner started")
}

func (sc *Scanner) runScanLoop() {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.config.ScanInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sc.stopChan
		cancel()
	}()

	sc.Scan(ctx)
	for {
		select {
		case <-ticker.C:
			sc.Scan(ctx)
		case <-sc.stopChan:
			sc.logger.Info().Msg("Scanner stopped")
			return
		}
	}
}

// Stop shuts down the scan loop and waits for the running cycle
func (sc *Scanner) Stop() {
	sc.stopOnce.Do(func() { close(sc.stopChan) })
	sc.wg.Wait()
}

// LastReport returns the most recent scan report, or nil
func (sc *Scanner) LastReport() *ScanReport {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.last
}

// Scan runs one cycle over the configured symbols
func (sc *Scanner) Scan(ctx context.Context) *ScanReport {
	return sc.ScanSymbols(ctx, nil)
}

// ScanSymbols runs one cycle. A nil list scans the configured symbols.
// Signal upkeep runs first so expired or stopped-out signals free their
// slot before new ones are inserted.
func (sc *Scanner) ScanSymbols(ctx context.Context, symbols []string) *ScanReport {
	sc.scanMu.Lock()
	defer sc.scanMu.Unlock()

	start := sc.now()
	report := &ScanReport{ScanID: uuid.NewString(), StartTime: start}
	upkeep := sc.logger.With().Str("scan_id", report.ScanID).Logger()

	sc.expire(ctx, report, upkeep)
	sc.monitor(ctx, report, upkeep)

	if symbols == nil {
		symbols = sc.symbolsToScan(ctx, upkeep)
	}
	report.SymbolsScanned = len(symbols)
	log := logging.ScanContext(sc.logger, report.ScanID, len(symbols))
	report.Results = sc.runPool(ctx, report.ScanID, symbols, log)
	for _, res := range report.Results {
		report.count(res)
	}

	report.EndTime = sc.now()
	report.Duration = report.EndTime.Sub(start)

	sc.metrics.RecordScan(report.Duration.Seconds())
	if active, err := sc.store.List(ctx, signals.Filter{Status: signals.StatusActive}); err == nil {
		sc.metrics.SetActiveSignals(len(active))
	}
	if sc.bus != nil {
		sc.bus.PublishScanCompleted(report.ScanID, report.SymbolsScanned, report.Created,
			report.Filtered, report.Skipped, report.Errors, report.Duration)
	}

	sc.mu.Lock()
	sc.last = report
	sc.mu.Unlock()

	log.Info().
		Int("created", report.Created).
		Int("filtered", report.Filtered).
		Int("skipped", report.Skipped).
		Int("errors", report.Errors).
		Dur("duration", report.Duration).
		Msg("Scan completed")
	return report
}

// runPool evaluates symbols on the worker pool. Results keep input order.
func (sc *Scanner) runPool(ctx context.Context, scanID string, symbols []string, log zerolog.Logger) []SymbolResult {
	results := make([]SymbolResult, len(symbols))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := sc.config.WorkerCount
	if workers > len(symbols) {
		workers = len(symbols)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = sc.scanSymbol(ctx, scanID, symbols[idx], log)
			}
		}()
	}

	for i := range symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// scanSymbol runs the full pipeline for one symbol. It never panics into
// the pool; a panic is reported as an ERROR result.
func (sc *Scanner) scanSymbol(ctx context.Context, scanID, symbol string, scanLog zerolog.Logger) (res SymbolResult) {
	start := time.Now()
	log := logging.SymbolContext(scanLog, symbol)
	res.Symbol = symbol

	defer func() {
		if r := recover(); r != nil {
			res = SymbolResult{Symbol: symbol, Status: StatusError, Error: fmt.Sprintf("panic: %v", r)}
		}
		res.Duration = time.Since(start)
		sc.metrics.RecordSymbolResult(string(res.Status), res.Reason)
		if res.Status == StatusError {
			log.Warn().Str("error", res.Error).Msg("Symbol failed")
			if sc.bus != nil {
				sc.bus.PublishScanSymbolError(scanID, symbol, errors.New(res.Error))
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return errorResult(symbol, err)
	}

	symCtx, cancel := context.WithTimeout(ctx, sc.config.SymbolTimeout)
	defer cancel()

	data, err := sc.data.GetMultiTimeframeData(symCtx, symbol, sc.config.Tiers)
	if err != nil {
		return errorResult(symbol, err)
	}

	ev, err := sc.engine.Evaluate(symbol, data, strategy.EvalContext{Now: sc.now()})
	if err != nil {
		return errorResult(symbol, err)
	}
	res.Evaluation = ev

	switch ev.Outcome {
	case strategy.OutcomeBlocked:
		sc.metrics.RecordGateBlock(ev.Reason)
		res.Status, res.Reason = StatusFiltered, ev.Reason
		return res
	case strategy.OutcomeFiltered:
		res.Status, res.Reason = StatusFiltered, ev.Reason
		return res
	}

	s := ev.Signal
	dup, err := sc.engine.HasActiveDuplicate(symCtx, sc.store, symbol, s.Direction)
	if err != nil {
		return errorResult(symbol, err)
	}
	if dup {
		res.Status, res.Reason = StatusSkipped, ReasonDuplicateActiveSignal
		return res
	}

	if err := sc.store.Create(symCtx, s); err != nil {
		if errors.Is(err, signals.ErrActiveSignalExists) {
			res.Status, res.Reason = StatusSkipped, ReasonDuplicateActiveSignal
			return res
		}
		return errorResult(symbol, fmt.Errorf("store signal: %w", err))
	}

	res.Status, res.Signal = StatusSuccess, s
	sc.metrics.RecordSignalCreated(string(s.Direction), string(s.Rating))
	if sc.bus != nil {
		sc.bus.PublishSignalGenerated(s)
	}
	log.Info().
		Str("signal_id", s.ID).
		Str("direction", string(s.Direction)).
		Float64("entry", s.EntryPrice).
		Float64("stop", s.StopLoss).
		Float64("score", s.Score).
		Str("rating", string(s.Rating)).
		Msg("Signal created")
	return res
}

func errorResult(symbol string, err error) SymbolResult {
	return SymbolResult{Symbol: symbol, Status: StatusError, Error: err.Error()}
}

// expire moves signals past their TTL to EXPIRED
func (sc *Scanner) expire(ctx context.Context, report *ScanReport, log zerolog.Logger) {
	triggered := make(map[string]bool)
	if live, err := sc.store.List(ctx, signals.Filter{Status: signals.StatusTriggered}); err == nil {
		for _, s := range live {
			triggered[s.ID] = true
		}
	}

	expired, err := sc.store.ExpireStale(ctx, sc.now())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to expire stale signals")
	}
	for _, s := range expired {
		report.Expired++
		from := signals.StatusActive
		if triggered[s.ID] {
			from = signals.StatusTriggered
		}
		sc.statusChanged(s, from, "ttl")
	}
}

// monitor applies the live price to every ACTIVE and TRIGGERED signal
func (sc *Scanner) monitor(ctx context.Context, report *ScanReport, log zerolog.Logger) {
	for _, status := range []signals.Status{signals.StatusActive, signals.StatusTriggered} {
		live, err := sc.store.List(ctx, signals.Filter{Status: status})
		if err != nil {
			log.Warn().Err(err).Str("status", string(status)).Msg("Failed to list signals")
			continue
		}
		for _, s := range live {
			price, err := sc.source.GetCurrentPrice(ctx, s.Symbol)
			if err != nil {
				sc.metrics.RecordDataSourceError("price")
				continue
			}
			next, changed := signals.PriceStatus(s, price)
			if !changed {
				continue
			}
			updated, err := sc.store.UpdateStatus(ctx, s.ID, next, sc.now())
			if err != nil {
				log.Warn().Err(err).Str("signal_id", s.ID).Msg("Failed to update signal status")
				continue
			}
			switch next {
			case signals.StatusTriggered:
				report.Triggered++
			case signals.StatusInvalidated:
				report.Invalidated++
			}
			sc.statusChanged(updated, s.Status, "price")
		}
	}
}

func (sc *Scanner) statusChanged(s *signals.Signal, from signals.Status, cause string) {
	sc.metrics.RecordStatusChange(string(s.Status))
	if sc.bus != nil {
		sc.bus.PublishSignalStatusChanged(s, from, cause)
	}
}

// symbolsToScan returns the configured symbols, or every symbol of the
// data source, capped at MaxSymbols
func (sc *Scanner) symbolsToScan(ctx context.Context, log zerolog.Logger) []string {
	symbols := sc.config.Symbols
	if len(symbols) == 0 {
		all, err := sc.source.GetAllSymbols(ctx)
		if err != nil {
			sc.metrics.RecordDataSourceError("symbols")
			log.Error().Err(err).Msg("Failed to list symbols")
			return nil
		}
		symbols = all
	}

	unique := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if !contains(unique, s) {
			unique = append(unique, s)
		}
	}
	if sc.config.MaxSymbols > 0 && len(unique) > sc.config.MaxSymbols {
		unique = unique[:sc.config.MaxSymbols]
	}
	return unique
}

// AnalyzeSymbol evaluates one symbol without storing anything
func (sc *Scanner) AnalyzeSymbol(ctx context.Context, symbol string) (*strategy.Evaluation, error) {
	data, err := sc.data.GetMultiTimeframeData(ctx, symbol, sc.config.Tiers)
	if err != nil {
		return nil, err
	}
	return sc.engine.Evaluate(symbol, data, strategy.EvalContext{Now: sc.now()})
}

// Store returns the signal store
func (sc *Scanner) Store() signals.Store {
	return sc.store
}

func contains(slice []string, val string) bool {
	for _, item := range slice {
		if item == val {
			return true
		}
	}
	return false
}
