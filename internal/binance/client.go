package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned when the breaker rejects a request without calling the exchange
var ErrCircuitOpen = errors.New("binance: circuit open")

// Client is a read-only REST client for public market data endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// ClientOptions tunes request pacing and failure isolation
type ClientOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// Consecutive failures before the breaker opens
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultClientOptions returns conservative limits for the public API
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:           10 * time.Second,
		RequestsPerSecond: 10,
		Burst:             20,
		BreakerFailures:   3,
		BreakerTimeout:    60 * time.Second,
	}
}

func NewClient(baseURL string, opts ClientOptions) *Client {
	def := DefaultClientOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = def.RequestsPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = def.Burst
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = def.BreakerFailures
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = def.BreakerTimeout
	}

	failures := opts.BreakerFailures
	st := gobreaker.Settings{
		Name:     "binance-rest",
		Interval: 60 * time.Second,
		Timeout:  opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker:    gobreaker.NewCircuitBreaker(st),
	}
}

// Kline represents a candlestick
type Kline struct {
	OpenTime                 int64   `json:"openTime"`
	Open                     float64 `json:"open,string"`
	High                     float64 `json:"high,string"`
	Low                      float64 `json:"low,string"`
	Close                    float64 `json:"close,string"`
	Volume                   float64 `json:"volume,string"`
	CloseTime                int64   `json:"closeTime"`
	QuoteAssetVolume         float64 `json:"quoteAssetVolume,string"`
	NumberOfTrades           int     `json:"numberOfTrades"`
	TakerBuyBaseAssetVolume  float64 `json:"takerBuyBaseAssetVolume,string"`
	TakerBuyQuoteAssetVolume float64 `json:"takerBuyQuoteAssetVolume,string"`
}

// Ticker24hr represents 24hr ticker price change statistics
type Ticker24hr struct {
	Symbol             string  `json:"symbol"`
	PriceChange        float64 `json:"priceChange,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	WeightedAvgPrice   float64 `json:"weightedAvgPrice,string"`
	LastPrice          float64 `json:"lastPrice,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
	OpenTime           int64   `json:"openTime"`
	CloseTime          int64   `json:"closeTime"`
	Count              int64   `json:"count"`
}

// SymbolInfo represents basic symbol information
type SymbolInfo struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	BaseAsset            string `json:"baseAsset"`
	QuoteAsset           string `json:"quoteAsset"`
	IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
}

// ExchangeInfo represents exchange information response
type ExchangeInfo struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// get performs a paced, breaker-guarded GET and returns the raw body
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
		}
		return body, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// GetKlines fetches candlestick data
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	klines := make([]Kline, 0, len(rawKlines))
	for _, raw := range rawKlines {
		if len(raw) < 11 {
			return nil, fmt.Errorf("error parsing klines: short row of %d fields", len(raw))
		}
		klines = append(klines, Kline{
			OpenTime:                 parseInt(raw[0]),
			Open:                     parseFloat(raw[1]),
			High:                     parseFloat(raw[2]),
			Low:                      parseFloat(raw[3]),
			Close:                    parseFloat(raw[4]),
			Volume:                   parseFloat(raw[5]),
			CloseTime:                parseInt(raw[6]),
			QuoteAssetVolume:         parseFloat(raw[7]),
			NumberOfTrades:           int(parseInt(raw[8])),
			TakerBuyBaseAssetVolume:  parseFloat(raw[9]),
			TakerBuyQuoteAssetVolume: parseFloat(raw[10]),
		})
	}

	return klines, nil
}

// Get24hrTicker fetches 24hr statistics for one symbol
func (c *Client) Get24hrTicker(ctx context.Context, symbol string) (*Ticker24hr, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/24hr", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching ticker: %w", err)
	}

	var ticker Ticker24hr
	if err := json.Unmarshal(body, &ticker); err != nil {
		return nil, fmt.Errorf("error parsing ticker: %w", err)
	}
	return &ticker, nil
}

// GetCurrentPrice fetches the current price for a symbol
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return priceResp.Price, nil
}

// GetExchangeInfo fetches exchange information including all trading symbols
func (c *Client) GetExchangeInfo(ctx context.Context) (*ExchangeInfo, error) {
	body, err := c.get(ctx, "/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching exchange info: %w", err)
	}

	var exchangeInfo ExchangeInfo
	if err := json.Unmarshal(body, &exchangeInfo); err != nil {
		return nil, fmt.Errorf("error parsing exchange info: %w", err)
	}

	return &exchangeInfo, nil
}

// GetAllSymbols returns every USDT pair currently trading
func (c *Client) GetAllSymbols(ctx context.Context) ([]string, error) {
	info, err := c.GetExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == "TRADING" && s.QuoteAsset == "USDT" && s.IsSpotTradingAllowed {
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols, nil
}

// BreakerState reports the circuit breaker state for health output
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}

func parseInt(val interface{}) int64 {
	switch v := val.(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
