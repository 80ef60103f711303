// Package cache provides a Redis cache for market data with graceful
// degradation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smc-signal-engine/config"
)

var (
	// ErrMiss is returned when a key is not cached
	ErrMiss = errors.New("cache miss")
	// ErrUnavailable is returned while the breaker is open
	ErrUnavailable = errors.New("redis unavailable (circuit breaker open)")
)

// Key prefixes
const (
	PrefixCandles = "smc:candles:%s:%s:%d"
)

// CacheService provides Redis-based caching with graceful degradation.
// When Redis is unavailable, operations return ErrUnavailable and callers
// fall back to the data source.
type CacheService struct {
	client       redis.UniversalClient
	address      string
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewCacheService connects to Redis. A failed initial ping leaves the
// service in degraded mode rather than returning an error.
func NewCacheService(cfg config.RedisConfig, logger zerolog.Logger) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := NewWithClient(client, cfg.Address, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cs.Ping(ctx); err != nil {
		cs.logger.Warn().Err(err).Msg("Initial Redis connection failed, running degraded")
		cs.mu.Lock()
		cs.healthy = false
		cs.mu.Unlock()
		return cs, nil
	}

	cs.logger.Info().Str("address", cfg.Address).Msg("Redis connected")
	return cs, nil
}

// NewWithClient wraps an existing client and assumes it is healthy
func NewWithClient(client redis.UniversalClient, address string, logger zerolog.Logger) *CacheService {
	return &CacheService{
		client:        client,
		address:       address,
		logger:        logger.With().Str("component", "cache").Logger(),
		healthy:       true,
		lastCheck:     time.Now(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}
}

// IsHealthy returns whether Redis is currently available
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			cs.logger.Warn().Int("failures", cs.failureCount).Msg("Circuit breaker OPEN: Redis marked unhealthy")
		}
		cs.healthy = false
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		cs.logger.Info().Msg("Circuit breaker CLOSED: Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

// checkHealth pings in the background once the check interval has passed
// while unhealthy
func (cs *CacheService) checkHealth() {
	cs.mu.RLock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= cs.checkInterval
	cs.mu.RUnlock()
	if !shouldCheck {
		return
	}

	cs.mu.Lock()
	cs.lastCheck = time.Now()
	cs.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cs.client.Ping(ctx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// Get retrieves a value. A missing key returns ErrMiss and does not count
// as a failure.
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return "", ErrUnavailable
	}

	result, err := cs.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		cs.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	cs.recordSuccess()
	return result, nil
}

// Set stores a value with TTL. Non-string values are stored as JSON.
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return ErrUnavailable
	}

	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		data = string(jsonData)
	}

	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// GetJSON retrieves and unmarshals a JSON value
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := cs.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// SetJSON marshals and stores a JSON value
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return cs.Set(ctx, key, value, ttl)
}

// Ping checks Redis connectivity
func (cs *CacheService) Ping(ctx context.Context) error {
	if err := cs.client.Ping(ctx).Err(); err != nil {
		cs.recordFailure()
		return err
	}
	cs.recordSuccess()
	return nil
}

// Close closes the Redis connection
func (cs *CacheService) Close() error {
	if cs.client != nil {
		return cs.client.Close()
	}
	return nil
}

// Client returns the underlying client, shared with the Redis signal store
func (cs *CacheService) Client() redis.UniversalClient {
	return cs.client
}

// Stats returns cache statistics for monitoring
type Stats struct {
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
}

// GetStats returns current cache statistics
func (cs *CacheService) GetStats() Stats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return Stats{
		Healthy:      cs.healthy,
		FailureCount: cs.failureCount,
		Address:      cs.address,
	}
}

// CandleKey generates the cache key for a kline request
func CandleKey(symbol, interval string, limit int) string {
	return fmt.Sprintf(PrefixCandles, symbol, interval, limit)
}
