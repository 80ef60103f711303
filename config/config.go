package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BinanceConfig  BinanceConfig  `json:"binance"`
	ScannerConfig  ScannerConfig  `json:"scanner"`
	StrategyConfig StrategyConfig `json:"strategy"`
	RiskConfig     RiskConfig     `json:"risk"`
	SignalsConfig  SignalsConfig  `json:"signals"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	MetricsConfig  MetricsConfig  `json:"metrics"`
	ServerConfig   ServerConfig   `json:"server"`
	AuthConfig     AuthConfig     `json:"auth"`
	RedisConfig    RedisConfig    `json:"redis"`
	DatabaseConfig DatabaseConfig `json:"database"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// BinanceConfig holds the public market data endpoint settings
type BinanceConfig struct {
	BaseURL           string        `json:"base_url"`
	MockMode          bool          `json:"mock_mode"` // Use simulated data when Binance API is unavailable
	Timeout           time.Duration `json:"timeout"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	Burst             int           `json:"burst"`
	BreakerFailures   uint32        `json:"breaker_failures"`
	BreakerTimeout    time.Duration `json:"breaker_timeout"`
}

type ScannerConfig struct {
	Enabled       bool          `json:"enabled"`
	ScanInterval  time.Duration `json:"scan_interval"`
	Symbols       []string      `json:"symbols"` // Empty means all symbols from the data source
	MaxSymbols    int           `json:"max_symbols"`
	WorkerCount   int           `json:"worker_count"`
	CacheTTL      time.Duration `json:"cache_ttl"` // Zero derives TTL from each interval
	SymbolTimeout time.Duration `json:"symbol_timeout"`
}

// StrategyConfig controls the three-tier market structure analysis
type StrategyConfig struct {
	StrategicInterval   string  `json:"strategic_interval"`
	TacticalInterval    string  `json:"tactical_interval"`
	ExecutionInterval   string  `json:"execution_interval"`
	CandleLimit         int     `json:"candle_limit"`
	SwingLookback       int     `json:"swing_lookback"`
	EqualLevelTolerance float64 `json:"equal_level_tolerance"` // percent
	MinFVGPercent       float64 `json:"min_fvg_percent"`
	StrictAlignment     bool    `json:"strict_alignment"`
	MinQuoteVolume24h   float64 `json:"min_quote_volume_24h"` // Below this the liquidity penalty applies
	MinScore            float64 `json:"min_score"`            // Signals scoring below are filtered
}

type RiskConfig struct {
	AccountBalance      float64 `json:"account_balance"`
	RiskPerTradePercent float64 `json:"risk_per_trade_percent"`
	MinRiskReward       float64 `json:"min_risk_reward"`
	MinStopPercent      float64 `json:"min_stop_percent"`
	MaxStopPercent      float64 `json:"max_stop_percent"`
	DefaultLeverage     int     `json:"default_leverage"`
}

// SignalsConfig selects the signal store backend
type SignalsConfig struct {
	Store     string        `json:"store"` // memory, redis, postgres
	TTL       time.Duration `json:"ttl"`
	KeyPrefix string        `json:"key_prefix"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// AuthConfig holds bearer token settings for mutating API routes
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	Issuer              string        `json:"issuer"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
}

// RedisConfig holds Redis configuration for caching and signal storage
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// Default returns a configuration that runs fully in memory against the mock data source
func Default() *Config {
	return &Config{
		BinanceConfig: BinanceConfig{
			BaseURL:           "https://api.binance.com",
			MockMode:          true,
			Timeout:           10 * time.Second,
			RequestsPerSecond: 10,
			Burst:             20,
			BreakerFailures:   3,
			BreakerTimeout:    60 * time.Second,
		},
		ScannerConfig: ScannerConfig{
			Enabled:       true,
			ScanInterval:  5 * time.Minute,
			MaxSymbols:    50,
			WorkerCount:   8,
			SymbolTimeout: 30 * time.Second,
		},
		StrategyConfig: StrategyConfig{
			StrategicInterval:   "4h",
			TacticalInterval:    "1h",
			ExecutionInterval:   "15m",
			CandleLimit:         100,
			SwingLookback:       3,
			EqualLevelTolerance: 0.1,
			MinFVGPercent:       0.1,
			StrictAlignment:     false,
			MinQuoteVolume24h:   1000000,
		},
		RiskConfig: RiskConfig{
			AccountBalance:      10000,
			RiskPerTradePercent: 1.0,
			MinRiskReward:       2.0,
			MinStopPercent:      0.5,
			MaxStopPercent:      10.0,
			DefaultLeverage:     10,
		},
		SignalsConfig: SignalsConfig{
			Store:     "memory",
			TTL:       4 * time.Hour,
			KeyPrefix: "smc:signal:",
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		MetricsConfig: MetricsConfig{
			Enabled:   true,
			Namespace: "smc",
		},
		ServerConfig: ServerConfig{
			Enabled:         true,
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		AuthConfig: AuthConfig{
			Issuer:              "smc-signal-engine",
			AccessTokenDuration: 15 * time.Minute,
		},
		RedisConfig: RedisConfig{
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "smc",
			Database: "smc_signals",
			SSLMode:  "disable",
		},
	}
}

// Load reads .env, then config.json over the defaults, then environment overrides
func Load() (*Config, error) {
	return LoadFrom("config.json")
}

// LoadFrom is Load with an explicit config file path
func LoadFrom(filename string) (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := Default()
	if filename != "" {
		if err := loadFromFile(filename, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if c.StrategyConfig.CandleLimit < 20 {
		return fmt.Errorf("strategy.candle_limit must be at least 20, got %d", c.StrategyConfig.CandleLimit)
	}
	if c.RiskConfig.MinStopPercent >= c.RiskConfig.MaxStopPercent {
		return fmt.Errorf("risk.min_stop_percent (%.2f) must be below risk.max_stop_percent (%.2f)",
			c.RiskConfig.MinStopPercent, c.RiskConfig.MaxStopPercent)
	}
	switch c.SignalsConfig.Store {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("signals.store must be memory, redis or postgres, got %q", c.SignalsConfig.Store)
	}
	if c.AuthConfig.Enabled && c.AuthConfig.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.MockMode = getEnvBoolOrDefault("MOCK_MODE", cfg.BinanceConfig.MockMode)
	cfg.BinanceConfig.RequestsPerSecond = getEnvFloatOrDefault("BINANCE_RPS", cfg.BinanceConfig.RequestsPerSecond)

	cfg.ScannerConfig.Enabled = getEnvBoolOrDefault("SCANNER_ENABLED", cfg.ScannerConfig.Enabled)
	cfg.ScannerConfig.ScanInterval = getEnvDurationOrDefault("SCANNER_INTERVAL", cfg.ScannerConfig.ScanInterval)
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKERS", cfg.ScannerConfig.WorkerCount)
	cfg.ScannerConfig.MaxSymbols = getEnvIntOrDefault("SCANNER_MAX_SYMBOLS", cfg.ScannerConfig.MaxSymbols)
	if symbols := os.Getenv("SCANNER_SYMBOLS"); symbols != "" {
		cfg.ScannerConfig.Symbols = splitList(symbols)
	}

	cfg.StrategyConfig.StrategicInterval = getEnvOrDefault("STRATEGY_HTF", cfg.StrategyConfig.StrategicInterval)
	cfg.StrategyConfig.TacticalInterval = getEnvOrDefault("STRATEGY_MTF", cfg.StrategyConfig.TacticalInterval)
	cfg.StrategyConfig.ExecutionInterval = getEnvOrDefault("STRATEGY_LTF", cfg.StrategyConfig.ExecutionInterval)
	cfg.StrategyConfig.StrictAlignment = getEnvBoolOrDefault("STRATEGY_STRICT", cfg.StrategyConfig.StrictAlignment)

	cfg.RiskConfig.AccountBalance = getEnvFloatOrDefault("RISK_ACCOUNT_BALANCE", cfg.RiskConfig.AccountBalance)
	cfg.RiskConfig.DefaultLeverage = getEnvIntOrDefault("RISK_DEFAULT_LEVERAGE", cfg.RiskConfig.DefaultLeverage)

	cfg.SignalsConfig.Store = getEnvOrDefault("SIGNAL_STORE", cfg.SignalsConfig.Store)
	cfg.SignalsConfig.TTL = getEnvDurationOrDefault("SIGNAL_TTL", cfg.SignalsConfig.TTL)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	cfg.MetricsConfig.Enabled = getEnvBoolOrDefault("METRICS_ENABLED", cfg.MetricsConfig.Enabled)

	cfg.ServerConfig.Enabled = getEnvBoolOrDefault("WEB_ENABLED", cfg.ServerConfig.Enabled)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	cfg.AuthConfig.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.AuthConfig.AccessTokenDuration)

	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)
}

func loadFromFile(filename string, cfg *Config) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Default()
	config.ScannerConfig.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	config.AuthConfig.JWTSecret = "change_me"

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
