package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/signals"
	"smc-signal-engine/internal/strategy"
	"smc-signal-engine/internal/strategy/strategytest"
)

var scanTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

var testTiers = Tiers{Strategic: "4h", Tactical: "1h", Execution: "15m", Limit: 100}

// fakeSource serves fixed candles per symbol and interval
type fakeSource struct {
	mu      sync.Mutex
	klines  map[string]map[string][]binance.Kline
	prices  map[string]float64
	symbols []string
	calls   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		klines: make(map[string]map[string][]binance.Kline),
		prices: make(map[string]float64),
	}
}

func (f *fakeSource) add(symbol string, strategic, tactical, execution []binance.Kline) {
	f.klines[symbol] = map[string][]binance.Kline{"4h": strategic, "1h": tactical, "15m": execution}
	f.symbols = append(f.symbols, symbol)
}

func (f *fakeSource) setPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

func (f *fakeSource) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	series, ok := f.klines[symbol][interval]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return series, nil
}

func (f *fakeSource) Get24hrTicker(ctx context.Context, symbol string) (*binance.Ticker24hr, error) {
	return &binance.Ticker24hr{Symbol: symbol, QuoteVolume: 5e7}, nil
}

func (f *fakeSource) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[symbol]
	if !ok {
		return 0, errors.New("no price")
	}
	return p, nil
}

func (f *fakeSource) GetAllSymbols(ctx context.Context) ([]string, error) {
	return f.symbols, nil
}

func bullishSource() *fakeSource {
	src := newFakeSource()
	src.add("BTCUSDT", strategytest.BullishStrategic(), strategytest.BullishTactical(), strategytest.BullishExecution())
	return src
}

func newTestScanner(src *fakeSource, bus *events.EventBus, symbols ...string) (*Scanner, *signals.MemoryStore) {
	cfg := strategy.DefaultConfig()
	cfg.MinQuoteVolume24h = 1e6
	store := signals.NewMemoryStore()
	data := NewTimeframeManager(src, nil, time.Minute, nil, zerolog.Nop())
	sc := NewScanner(src, data, strategy.NewEngine(cfg), store, bus, nil, Config{
		Symbols:     symbols,
		WorkerCount: 2,
		Tiers:       testTiers,
	}, zerolog.Nop())
	sc.SetClock(func() time.Time { return scanTime })
	return sc, store
}

func TestScanCreatesSignal(t *testing.T) {
	sc, store := newTestScanner(bullishSource(), nil, "BTCUSDT")

	report := sc.Scan(context.Background())
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, StatusSuccess, res.Status)
	require.NotNil(t, res.Signal)
	assert.Equal(t, analysis.DirectionLong, res.Signal.Direction)
	assert.Equal(t, 1, report.Created)
	assert.NotEmpty(t, report.ScanID)
	assert.Same(t, report, sc.LastReport())
	assert.Len(t, report.Signals(), 1)

	active, err := store.List(context.Background(), signals.Filter{Status: signals.StatusActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, res.Signal.ID, active[0].ID)
}

func TestScanSkipsDuplicateActiveSignal(t *testing.T) {
	sc, store := newTestScanner(bullishSource(), nil, "BTCUSDT")
	ctx := context.Background()

	sc.Scan(ctx)
	report := sc.Scan(ctx)

	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusSkipped, report.Results[0].Status)
	assert.Equal(t, ReasonDuplicateActiveSignal, report.Results[0].Reason)
	assert.Equal(t, 1, report.Skipped)

	all, err := store.List(ctx, signals.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// lockedBuffer serialises writes from the worker goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines() []map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]interface{}
	for _, line := range bytes.Split(b.buf.Bytes(), []byte("\n")) {
		var entry map[string]interface{}
		if json.Unmarshal(line, &entry) == nil {
			out = append(out, entry)
		}
	}
	return out
}

func TestScanLogsResolvedSymbolCount(t *testing.T) {
	src := bullishSource()
	src.add("ETHUSDT", strategytest.BullishStrategic(), strategytest.BullishTactical(), strategytest.BullishExecution())

	var out lockedBuffer
	data := NewTimeframeManager(src, nil, time.Minute, nil, zerolog.Nop())
	sc := NewScanner(src, data, strategy.NewEngine(strategy.DefaultConfig()), signals.NewMemoryStore(), nil, nil, Config{
		Symbols:     []string{"BTCUSDT", "ETHUSDT"},
		WorkerCount: 2,
		Tiers:       testTiers,
	}, zerolog.New(&out))
	sc.SetClock(func() time.Time { return scanTime })

	report := sc.Scan(context.Background())
	require.Equal(t, 2, report.SymbolsScanned)

	var completed map[string]interface{}
	for _, entry := range out.lines() {
		if entry["message"] == "Scan completed" {
			completed = entry
		}
	}
	require.NotNil(t, completed, "expected a scan completed log line")
	assert.Equal(t, float64(2), completed["symbols"])
	assert.Equal(t, report.ScanID, completed["scan_id"])
}

func TestScanMixedResultsKeepOrder(t *testing.T) {
	src := bullishSource()
	src.add("FLATUSDT", strategytest.FlatSeries(30, 4*time.Hour), strategytest.BullishTactical(), strategytest.BullishExecution())
	sc, _ := newTestScanner(src, nil, "MISSING", "FLATUSDT", "BTCUSDT")

	report := sc.Scan(context.Background())
	require.Len(t, report.Results, 3)

	assert.Equal(t, "MISSING", report.Results[0].Symbol)
	assert.Equal(t, StatusError, report.Results[0].Status)
	assert.NotEmpty(t, report.Results[0].Error)

	assert.Equal(t, "FLATUSDT", report.Results[1].Symbol)
	assert.Equal(t, StatusFiltered, report.Results[1].Status)
	assert.Equal(t, strategy.ReasonHTFDirectionNeutral, report.Results[1].Reason)

	assert.Equal(t, "BTCUSDT", report.Results[2].Symbol)
	assert.Equal(t, StatusSuccess, report.Results[2].Status)

	assert.Equal(t, 3, report.SymbolsScanned)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Filtered)
	assert.Equal(t, 1, report.Errors)
}

func TestScanInvalidatesBeforeEvaluating(t *testing.T) {
	src := bullishSource()
	sc, store := newTestScanner(src, nil, "BTCUSDT")
	ctx := context.Background()

	first := sc.Scan(ctx)
	require.Equal(t, StatusSuccess, first.Results[0].Status)
	oldID := first.Results[0].Signal.ID

	src.setPrice("BTCUSDT", 120)
	second := sc.Scan(ctx)
	assert.Equal(t, 1, second.Invalidated)
	assert.Equal(t, StatusSuccess, second.Results[0].Status, "the freed slot takes a new signal")

	old, err := store.Get(ctx, oldID)
	require.NoError(t, err)
	assert.Equal(t, signals.StatusInvalidated, old.Status)
}

func TestScanTriggersOnEntry(t *testing.T) {
	src := bullishSource()
	sc, store := newTestScanner(src, nil, "BTCUSDT")
	ctx := context.Background()

	first := sc.Scan(ctx)
	id := first.Results[0].Signal.ID

	src.setPrice("BTCUSDT", first.Results[0].Signal.EntryPrice)
	report := sc.ScanSymbols(ctx, []string{})
	assert.Equal(t, 1, report.Triggered)

	s, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, signals.StatusTriggered, s.Status)
}

func TestScanExpiresStaleSignals(t *testing.T) {
	bus := events.NewEventBus()
	changes := make(chan events.Event, 4)
	bus.Subscribe(events.EventSignalStatusChanged, func(e events.Event) { changes <- e })

	sc, store := newTestScanner(bullishSource(), bus, "BTCUSDT")
	ctx := context.Background()

	first := sc.Scan(ctx)
	id := first.Results[0].Signal.ID

	sc.SetClock(func() time.Time { return scanTime.Add(5 * time.Hour) })
	report := sc.ScanSymbols(ctx, []string{})
	assert.Equal(t, 1, report.Expired)
	assert.Empty(t, report.Results)

	s, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, signals.StatusExpired, s.Status)

	select {
	case e := <-changes:
		assert.Equal(t, signals.StatusActive, e.Data["from"])
		assert.Equal(t, signals.StatusExpired, e.Data["to"])
		assert.Equal(t, "ttl", e.Data["cause"])
	case <-time.After(time.Second):
		t.Fatal("Expected a status change event")
	}
}

func TestScanPublishesEvents(t *testing.T) {
	bus := events.NewEventBus()
	completed := make(chan events.Event, 1)
	generated := make(chan events.Event, 1)
	failed := make(chan events.Event, 1)
	bus.Subscribe(events.EventScanCompleted, func(e events.Event) { completed <- e })
	bus.Subscribe(events.EventSignalGenerated, func(e events.Event) { generated <- e })
	bus.Subscribe(events.EventScanSymbolError, func(e events.Event) { failed <- e })

	sc, _ := newTestScanner(bullishSource(), bus, "BTCUSDT", "MISSING")
	report := sc.Scan(context.Background())

	for name, ch := range map[string]chan events.Event{"completed": completed, "generated": generated, "failed": failed} {
		select {
		case e := <-ch:
			if name == "completed" {
				assert.Equal(t, report.ScanID, e.Data["scan_id"])
				assert.Equal(t, 1, e.Data["created"])
			}
			if name == "failed" {
				assert.Equal(t, "MISSING", e.Data["symbol"])
			}
		case <-time.After(time.Second):
			t.Fatalf("Expected a %s event", name)
		}
	}
}

func TestSymbolsToScan(t *testing.T) {
	src := newFakeSource()
	src.symbols = []string{"AUSDT", "BUSDT", "AUSDT", "CUSDT"}

	sc, _ := newTestScanner(src, nil)
	assert.Equal(t, []string{"AUSDT", "BUSDT", "CUSDT"}, sc.symbolsToScan(context.Background(), zerolog.Nop()))

	sc.config.MaxSymbols = 2
	assert.Equal(t, []string{"AUSDT", "BUSDT"}, sc.symbolsToScan(context.Background(), zerolog.Nop()))

	sc.config.Symbols = []string{"XUSDT"}
	assert.Equal(t, []string{"XUSDT"}, sc.symbolsToScan(context.Background(), zerolog.Nop()))
}

func TestScanCancelledContext(t *testing.T) {
	sc, store := newTestScanner(bullishSource(), nil, "BTCUSDT")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := sc.Scan(ctx)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusError, report.Results[0].Status)

	all, _ := store.List(context.Background(), signals.Filter{})
	assert.Empty(t, all)
}

func TestAnalyzeSymbolStoresNothing(t *testing.T) {
	sc, store := newTestScanner(bullishSource(), nil)

	ev, err := sc.AnalyzeSymbol(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, strategy.OutcomeSignal, ev.Outcome)

	all, _ := store.List(context.Background(), signals.Filter{})
	assert.Empty(t, all)

	_, err = sc.AnalyzeSymbol(context.Background(), "MISSING")
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	src := bullishSource()
	cfg := strategy.DefaultConfig()
	cfg.MinQuoteVolume24h = 1e6
	data := NewTimeframeManager(src, nil, time.Minute, nil, zerolog.Nop())

	disabled := NewScanner(src, data, strategy.NewEngine(cfg), signals.NewMemoryStore(), nil, nil, Config{Tiers: testTiers}, zerolog.Nop())
	disabled.Start()
	disabled.Stop()
	assert.Nil(t, disabled.LastReport())

	sc := NewScanner(src, data, strategy.NewEngine(cfg), signals.NewMemoryStore(), nil, nil, Config{
		Enabled:      true,
		ScanInterval: time.Hour,
		Symbols:      []string{"BTCUSDT"},
		Tiers:        testTiers,
	}, zerolog.Nop())
	sc.Start()
	require.Eventually(t, func() bool { return sc.LastReport() != nil }, 2*time.Second, 10*time.Millisecond)
	sc.Stop()
	sc.Stop()
	assert.Equal(t, 1, sc.LastReport().SymbolsScanned)
}

func BenchmarkScan(b *testing.B) {
	sc, _ := newTestScanner(bullishSource(), nil, "BTCUSDT")
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		sc.ScanSymbols(ctx, []string{"BTCUSDT"})
	}
}
