package binance

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// MockClient provides simulated market data for development/testing.
// Klines are a seeded random walk per symbol and interval, so repeated
// calls within the same interval bucket return the same series.
type MockClient struct {
	prices map[string]float64
	now    func() time.Time
	mu     sync.RWMutex
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{
		prices: map[string]float64{
			"BTCUSDT":  104500.00,
			"ETHUSDT":  3900.00,
			"BNBUSDT":  710.00,
			"SOLUSDT":  220.00,
			"XRPUSDT":  2.35,
			"ADAUSDT":  1.05,
			"DOGEUSDT": 0.40,
			"AVAXUSDT": 50.00,
			"DOTUSDT":  9.50,
			"LINKUSDT": 28.00,
			"LTCUSDT":  115.00,
			"NEARUSDT": 7.00,
		},
		now: time.Now,
	}
}

// SetClock overrides the time source
func (mc *MockClient) SetClock(now func() time.Time) {
	mc.mu.Lock()
	mc.now = now
	mc.mu.Unlock()
}

// IntervalDuration maps an exchange interval string to its duration
func IntervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

func (mc *MockClient) basePrice(symbol string) float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if p, ok := mc.prices[symbol]; ok {
		return p
	}
	return 100.0
}

func seedFor(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return int64(h.Sum64() & math.MaxInt64)
}

// GetKlines returns simulated candlestick data
func (mc *MockClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Kline{}, nil
	}

	basePrice := mc.basePrice(symbol)
	intervalDuration := IntervalDuration(interval)

	mc.mu.RLock()
	now := mc.now()
	mc.mu.RUnlock()
	end := now.Truncate(intervalDuration)

	rng := rand.New(rand.NewSource(seedFor(symbol, interval)))
	klines := make([]Kline, limit)

	currentPrice := basePrice
	for i := 0; i < limit; i++ {
		openTime := end.Add(-time.Duration(limit-i) * intervalDuration)
		closeTime := openTime.Add(intervalDuration - time.Millisecond)

		volatility := 0.02
		open := currentPrice
		change := (rng.Float64() - 0.5) * volatility * 2
		close := open * (1 + change)

		high := math.Max(open, close) * (1 + rng.Float64()*volatility*0.5)
		low := math.Min(open, close) * (1 - rng.Float64()*volatility*0.5)

		volume := basePrice * (1000 + rng.Float64()*5000)

		klines[i] = Kline{
			OpenTime:                 openTime.UnixMilli(),
			Open:                     open,
			High:                     high,
			Low:                      low,
			Close:                    close,
			Volume:                   volume / basePrice,
			CloseTime:                closeTime.UnixMilli(),
			QuoteAssetVolume:         volume,
			NumberOfTrades:           int(100 + rng.Float64()*1000),
			TakerBuyBaseAssetVolume:  volume / basePrice * 0.5,
			TakerBuyQuoteAssetVolume: volume * 0.5,
		}

		currentPrice = close
	}

	return klines, nil
}

// Get24hrTicker returns simulated 24hr ticker data
func (mc *MockClient) Get24hrTicker(ctx context.Context, symbol string) (*Ticker24hr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	price := mc.basePrice(symbol)
	rng := rand.New(rand.NewSource(seedFor(symbol, "24hr")))

	mc.mu.RLock()
	now := mc.now()
	mc.mu.RUnlock()

	priceChange := (rng.Float64() - 0.5) * price * 0.1
	volume := 1000000 + rng.Float64()*10000000
	return &Ticker24hr{
		Symbol:             symbol,
		PriceChange:        priceChange,
		PriceChangePercent: priceChange / price * 100,
		WeightedAvgPrice:   price,
		LastPrice:          price,
		Volume:             volume,
		QuoteVolume:        price * volume,
		OpenTime:           now.Add(-24 * time.Hour).UnixMilli(),
		CloseTime:          now.UnixMilli(),
		Count:              100000 + rng.Int63n(100000),
	}, nil
}

// GetCurrentPrice returns the latest simulated close on the 1m series
func (mc *MockClient) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	klines, err := mc.GetKlines(ctx, symbol, "1m", 1)
	if err != nil {
		return 0, err
	}
	return klines[len(klines)-1].Close, nil
}

// GetAllSymbols returns all mock trading pairs, sorted
func (mc *MockClient) GetAllSymbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	symbols := make([]string, 0, len(mc.prices))
	for symbol := range mc.prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}
