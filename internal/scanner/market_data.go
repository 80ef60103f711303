package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/cache"
	"smc-signal-engine/internal/metrics"
	"smc-signal-engine/internal/strategy"
)

// RemoteCache is a shared second-level candle cache
type RemoteCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Tiers names the interval of each analysis tier
type Tiers struct {
	Strategic string
	Tactical  string
	Execution string
	Limit     int
}

// TimeframeManager fetches the three tiers of a symbol in parallel through
// an in-process cache and an optional shared cache
type TimeframeManager struct {
	source  binance.MarketDataSource
	cache   *CandleCache
	remote  RemoteCache
	ttl     time.Duration // Zero derives TTL from the interval
	metrics *metrics.Recorder
	logger  zerolog.Logger
}

// NewTimeframeManager creates a multi-timeframe data manager. remote and
// recorder may be nil.
func NewTimeframeManager(source binance.MarketDataSource, remote RemoteCache, ttl time.Duration, recorder *metrics.Recorder, logger zerolog.Logger) *TimeframeManager {
	return &TimeframeManager{
		source:  source,
		cache:   NewCandleCache(),
		remote:  remote,
		ttl:     ttl,
		metrics: recorder,
		logger:  logger.With().Str("component", "market_data").Logger(),
	}
}

// GetMultiTimeframeData fetches all three tiers and the 24h ticker. A failed
// ticker only leaves the quote volume at zero.
func (tm *TimeframeManager) GetMultiTimeframeData(ctx context.Context, symbol string, tiers Tiers) (*strategy.MultiTimeframeData, error) {
	data := &strategy.MultiTimeframeData{Symbol: symbol}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range []struct {
		interval string
		dst      *[]binance.Kline
	}{
		{tiers.Strategic, &data.Strategic},
		{tiers.Tactical, &data.Tactical},
		{tiers.Execution, &data.Execution},
	} {
		t := t
		g.Go(func() error {
			candles, err := tm.GetCandles(gctx, symbol, t.interval, tiers.Limit)
			if err != nil {
				return fmt.Errorf("failed to fetch %s %s: %w", symbol, t.interval, err)
			}
			*t.dst = candles
			return nil
		})
	}
	g.Go(func() error {
		ticker, err := tm.source.Get24hrTicker(gctx, symbol)
		if err != nil {
			tm.metrics.RecordDataSourceError("ticker")
			tm.logger.Debug().Err(err).Str("symbol", symbol).Msg("24h ticker unavailable")
			return nil
		}
		data.QuoteVolume24h = ticker.QuoteVolume
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

// GetCandles fetches candles with caching. The returned slice is a copy.
func (tm *TimeframeManager) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error) {
	key := cache.CandleKey(symbol, interval, limit)

	if cached := tm.cache.Get(key); cached != nil {
		return cloneKlines(cached), nil
	}

	ttl := tm.cacheTTL(interval)
	if tm.remote != nil {
		var candles []binance.Kline
		err := tm.remote.GetJSON(ctx, key, &candles)
		switch {
		case err == nil && len(candles) > 0:
			tm.cache.Set(key, candles, ttl)
			return cloneKlines(candles), nil
		case err != nil && !errors.Is(err, cache.ErrMiss):
			tm.logger.Debug().Err(err).Str("key", key).Msg("Shared candle cache read failed")
		}
	}

	start := time.Now()
	candles, err := tm.source.GetKlines(ctx, symbol, interval, limit)
	tm.metrics.RecordFetch(interval, time.Since(start).Seconds())
	if err != nil {
		tm.metrics.RecordDataSourceError("klines")
		return nil, err
	}

	tm.cache.Set(key, candles, ttl)
	if tm.remote != nil {
		if err := tm.remote.SetJSON(ctx, key, candles, ttl); err != nil {
			tm.logger.Debug().Err(err).Str("key", key).Msg("Shared candle cache write failed")
		}
	}
	return cloneKlines(candles), nil
}

// cacheTTL returns the configured TTL or one derived from the interval
func (tm *TimeframeManager) cacheTTL(interval string) time.Duration {
	if tm.ttl > 0 {
		return tm.ttl
	}
	switch interval {
	case "1m":
		return 30 * time.Second
	case "5m":
		return 2 * time.Minute
	case "15m":
		return 5 * time.Minute
	case "1h":
		return 30 * time.Minute
	case "4h":
		return 2 * time.Hour
	case "1d":
		return 12 * time.Hour
	default:
		return 1 * time.Minute
	}
}

// Cache exposes the in-process cache
func (tm *TimeframeManager) Cache() *CandleCache {
	return tm.cache
}

func cloneKlines(in []binance.Kline) []binance.Kline {
	return append([]binance.Kline(nil), in...)
}

// CandleCache provides caching for candle data
type CandleCache struct {
	data map[string]*CacheEntry
	mu   sync.RWMutex
	now  func() time.Time
}

// CacheEntry represents a cached candle dataset
type CacheEntry struct {
	Candles   []binance.Kline
	ExpiresAt time.Time
}

// NewCandleCache creates a new candle cache
func NewCandleCache() *CandleCache {
	return &CandleCache{
		data: make(map[string]*CacheEntry),
		now:  time.Now,
	}
}

// Get retrieves cached candles if not expired
func (c *CandleCache) Get(key string) []binance.Kline {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists || c.now().After(entry.ExpiresAt) {
		return nil
	}
	return entry.Candles
}

// Set stores candles in cache with expiration
func (c *CandleCache) Set(key string, candles []binance.Kline, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &CacheEntry{
		Candles:   cloneKlines(candles),
		ExpiresAt: c.now().Add(ttl),
	}
}

// Clear removes expired entries and returns how many were dropped
func (c *CandleCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.data {
		if now.After(entry.ExpiresAt) {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired ones included
func (c *CandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
