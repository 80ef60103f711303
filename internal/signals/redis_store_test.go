package signals

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/analysis"
)

// TestRedisStoreGetAndMiss tests document decoding and missing keys
func TestRedisStoreGetAndMiss(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "t:")

	doc, err := json.Marshal(newSignal("a", "BTCUSDT", analysis.DirectionLong))
	require.NoError(t, err)

	mock.ExpectGet("t:signal:a").SetVal(string(doc))
	mock.ExpectGet("t:signal:missing").RedisNil()
	mock.ExpectGet("t:active:ETHUSDT:LONG").RedisNil()

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, []float64{104, 106}, got.TakeProfit)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSignalNotFound)

	_, err = store.FindActive(ctx, "ETHUSDT", analysis.DirectionLong)
	assert.ErrorIs(t, err, ErrSignalNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRedisStoreFindActiveIgnoresStaleSlot tests a slot pointing at a signal that already left ACTIVE
func TestRedisStoreFindActiveIgnoresStaleSlot(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "t:")

	sig := newSignal("a", "BTCUSDT", analysis.DirectionLong)
	sig.Status = StatusTriggered
	doc, err := json.Marshal(sig)
	require.NoError(t, err)

	mock.ExpectGet("t:active:BTCUSDT:LONG").SetVal("a")
	mock.ExpectGet("t:signal:a").SetVal(string(doc))

	_, err = store.FindActive(ctx, "BTCUSDT", analysis.DirectionLong)
	assert.ErrorIs(t, err, ErrSignalNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRedisStoreCreateRefusedSlot tests that a refused slot claim maps to ErrActiveSignalExists
func TestRedisStoreCreateRefusedSlot(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "t:")

	sig := newSignal("b", "BTCUSDT", analysis.DirectionLong)
	doc, err := json.Marshal(sig)
	require.NoError(t, err)
	keys := []string{"t:active:BTCUSDT:LONG", "t:signal:b", "t:index"}
	args := []interface{}{"b", string(doc), sig.CreatedAt.UnixMilli(), "1", "t:signal:"}

	mock.ExpectEvalSha(createScript.Hash(), keys, args...).SetVal(int64(0))
	mock.ExpectEvalSha(createScript.Hash(), keys, args...).SetVal(int64(1))

	assert.ErrorIs(t, store.Create(ctx, sig), ErrActiveSignalExists)
	assert.NoError(t, store.Create(ctx, sig))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestRedisStoreIntegration runs the full lifecycle against a real server when SMC_TEST_REDIS_ADDR is set
func TestRedisStoreIntegration(t *testing.T) {
	addr := os.Getenv("SMC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SMC_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	prefix := "smctest:" + uuid.NewString()[:8] + ":"
	defer func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	}()
	store := NewRedisStore(client, prefix)

	symbol := "IT" + strings.ToUpper(uuid.NewString()[:6])
	first := newSignal(uuid.NewString(), symbol, analysis.DirectionLong)
	second := newSignal(uuid.NewString(), symbol, analysis.DirectionLong)

	require.NoError(t, store.Create(ctx, first))
	assert.ErrorIs(t, store.Create(ctx, second), ErrActiveSignalExists)

	active, err := store.FindActive(ctx, symbol, analysis.DirectionLong)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	updated, err := store.UpdateStatus(ctx, first.ID, StatusTriggered, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatusTriggered, updated.Status)

	// Leaving ACTIVE frees the slot
	require.NoError(t, store.Create(ctx, second))

	_, err = store.UpdateStatus(ctx, first.ID, StatusActive, t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	expired, err := store.ExpireStale(ctx, t0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Len(t, expired, 2)

	list, err := store.List(ctx, Filter{Symbol: symbol, Status: StatusExpired})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Racing creates against a freed slot leave exactly one ACTIVE signal
	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Create(ctx, newSignal(uuid.NewString(), symbol, analysis.DirectionLong))
			if err == nil {
				won.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrActiveSignalExists)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won.Load())

	live, err := store.List(ctx, Filter{Symbol: symbol, Status: StatusActive})
	require.NoError(t, err)
	assert.Len(t, live, 1)
}
