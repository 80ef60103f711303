package binance

import (
	"github.com/rs/zerolog"

	"smc-signal-engine/config"
)

// DefaultBaseURL is the public spot REST endpoint
const DefaultBaseURL = "https://api.binance.com"

// NewMarketDataSource returns the live client, or the simulated one in mock
// mode
func NewMarketDataSource(cfg config.BinanceConfig, logger zerolog.Logger) MarketDataSource {
	if cfg.MockMode {
		logger.Warn().Msg("Using simulated market data")
		return NewMockClient()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger.Info().Str("base_url", baseURL).Msg("Using live market data")
	return NewClient(baseURL, ClientOptions{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		BreakerFailures:   cfg.BreakerFailures,
		BreakerTimeout:    cfg.BreakerTimeout,
	})
}
