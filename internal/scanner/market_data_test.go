package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/cache"
)

// mapCache is an in-memory RemoteCache that stores JSON like Redis does
type mapCache struct {
	mu     sync.Mutex
	values map[string][]byte
	writes int
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string][]byte)}
}

func (m *mapCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.values[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	m.writes++
	return nil
}

// failingTicker wraps a source whose 24h ticker always fails
type failingTicker struct {
	*fakeSource
}

func (failingTicker) Get24hrTicker(ctx context.Context, symbol string) (*binance.Ticker24hr, error) {
	return nil, errors.New("ticker down")
}

// TestGetMultiTimeframeData tests that all tiers and the quote volume arrive
func TestGetMultiTimeframeData(t *testing.T) {
	tm := NewTimeframeManager(bullishSource(), nil, time.Minute, nil, zerolog.Nop())

	data, err := tm.GetMultiTimeframeData(context.Background(), "BTCUSDT", testTiers)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", data.Symbol)
	assert.Len(t, data.Strategic, 30)
	assert.Len(t, data.Tactical, 26)
	assert.Len(t, data.Execution, 20)
	assert.Equal(t, 5e7, data.QuoteVolume24h)
}

// TestGetMultiTimeframeDataTickerFailure tests that a failed ticker is not fatal
func TestGetMultiTimeframeDataTickerFailure(t *testing.T) {
	tm := NewTimeframeManager(failingTicker{bullishSource()}, nil, time.Minute, nil, zerolog.Nop())

	data, err := tm.GetMultiTimeframeData(context.Background(), "BTCUSDT", testTiers)
	require.NoError(t, err)
	assert.Zero(t, data.QuoteVolume24h)
	assert.Len(t, data.Execution, 20)
}

// TestGetMultiTimeframeDataError tests that a failed tier fails the symbol
func TestGetMultiTimeframeDataError(t *testing.T) {
	tm := NewTimeframeManager(bullishSource(), nil, time.Minute, nil, zerolog.Nop())

	_, err := tm.GetMultiTimeframeData(context.Background(), "MISSING", testTiers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING")
}

// TestGetCandlesCaches tests the in-process cache and copy semantics
func TestGetCandlesCaches(t *testing.T) {
	src := bullishSource()
	tm := NewTimeframeManager(src, nil, time.Minute, nil, zerolog.Nop())
	ctx := context.Background()

	first, err := tm.GetCandles(ctx, "BTCUSDT", "1h", 100)
	require.NoError(t, err)
	first[0].Close = -1

	second, err := tm.GetCandles(ctx, "BTCUSDT", "1h", 100)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.NotEqual(t, -1.0, second[0].Close)
	assert.Equal(t, 1, tm.Cache().Len())
}

// TestGetCandlesSharedCache tests reads and writes through the remote cache
func TestGetCandlesSharedCache(t *testing.T) {
	src := bullishSource()
	remote := newMapCache()
	ctx := context.Background()

	writer := NewTimeframeManager(src, remote, time.Minute, nil, zerolog.Nop())
	want, err := writer.GetCandles(ctx, "BTCUSDT", "15m", 100)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.writes)

	reader := NewTimeframeManager(src, remote, time.Minute, nil, zerolog.Nop())
	got, err := reader.GetCandles(ctx, "BTCUSDT", "15m", 100)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "second manager must be served by the shared cache")
	assert.Equal(t, want, got)
}

// TestCandleCacheExpiry tests TTL handling and Clear
func TestCandleCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCandleCache()
	c.now = func() time.Time { return now }

	c.Set("a", []binance.Kline{{Close: 1}}, time.Minute)
	c.Set("b", []binance.Kline{{Close: 2}}, time.Hour)
	require.NotNil(t, c.Get("a"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.Get("a"))
	assert.NotNil(t, c.Get("b"))
	assert.Equal(t, 1, c.Clear())
	assert.Equal(t, 1, c.Len())
}

// TestCacheTTL tests interval derived TTLs
func TestCacheTTL(t *testing.T) {
	tm := NewTimeframeManager(newFakeSource(), nil, 0, nil, zerolog.Nop())
	assert.Equal(t, 5*time.Minute, tm.cacheTTL("15m"))
	assert.Equal(t, 2*time.Hour, tm.cacheTTL("4h"))
	assert.Equal(t, time.Minute, tm.cacheTTL("weird"))

	fixed := NewTimeframeManager(newFakeSource(), nil, 10*time.Second, nil, zerolog.Nop())
	assert.Equal(t, 10*time.Second, fixed.cacheTTL("4h"))
}
