package binance

import "context"

// MarketDataSource defines the market data operations the scanner depends on
type MarketDataSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
	Get24hrTicker(ctx context.Context, symbol string) (*Ticker24hr, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetAllSymbols(ctx context.Context) ([]string, error)
}

// Ensure both Client and MockClient implement MarketDataSource
var _ MarketDataSource = (*Client)(nil)
var _ MarketDataSource = (*MockClient)(nil)
