package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smc-signal-engine/internal/analysis"
)

// RedisStore keeps signals in Redis. The ACTIVE slot of a symbol and
// direction is claimed in the same script that writes the document, so
// concurrent scanners cannot both insert.
//
// Keys under prefix:
//
//	signal:<id>                   JSON document
//	active:<symbol>:<direction>   id holding the ACTIVE slot
//	index                         sorted set of ids scored by creation time
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store using client with the given key prefix
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "smc:signal:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) docKey(id string) string { return r.prefix + "signal:" + id }
func (r *RedisStore) slotKey(symbol string, d analysis.Direction) string {
	return r.prefix + "active:" + activeKey(symbol, d)
}
func (r *RedisStore) indexKey() string { return r.prefix + "index" }

// createScript inserts a signal atomically. An ACTIVE signal first claims
// the slot, which is refused while its holder's document exists and is still
// ACTIVE. A holder with no document is refused too, since the slot and the
// document are only ever written together here.
//
// KEYS: slot, doc, index. ARGV: id, json, score, "1" when ACTIVE, doc prefix.
var createScript = redis.NewScript(`
if ARGV[4] == "1" then
	local holder = redis.call('GET', KEYS[1])
	if holder then
		local doc = redis.call('GET', ARGV[5] .. holder)
		if not doc then
			return 0
		end
		local ok, held = pcall(cjson.decode, doc)
		if not ok or held['status'] == 'ACTIVE' then
			return 0
		end
	end
	redis.call('SET', KEYS[1], ARGV[1])
end
redis.call('SET', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// Create writes the signal and, when it is ACTIVE, claims its slot in one
// atomic step
func (r *RedisStore) Create(ctx context.Context, s *Signal) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode signal: %w", err)
	}

	active := "0"
	if s.Status == StatusActive {
		active = "1"
	}
	keys := []string{r.slotKey(s.Symbol, s.Direction), r.docKey(s.ID), r.indexKey()}
	created, err := createScript.Run(ctx, r.client, keys,
		s.ID, string(data), s.CreatedAt.UnixMilli(), active, r.prefix+"signal:").Int()
	if err != nil {
		return fmt.Errorf("failed to store signal: %w", err)
	}
	if created == 0 {
		return ErrActiveSignalExists
	}
	return nil
}

// Get loads a signal by id
func (r *RedisStore) Get(ctx context.Context, id string) (*Signal, error) {
	data, err := r.client.Get(ctx, r.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSignalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signal %s: %w", id, err)
	}
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode signal %s: %w", id, err)
	}
	return &s, nil
}

// FindActive returns the signal holding the ACTIVE slot
func (r *RedisStore) FindActive(ctx context.Context, symbol string, d analysis.Direction) (*Signal, error) {
	id, err := r.client.Get(ctx, r.slotKey(symbol, d)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSignalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active slot: %w", err)
	}
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusActive {
		return nil, ErrSignalNotFound
	}
	return s, nil
}

// List scans the index newest first
func (r *RedisStore) List(ctx context.Context, f Filter) ([]*Signal, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read signal index: %w", err)
	}
	out := make([]*Signal, 0)
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if errors.Is(err, ErrSignalNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !f.matches(s) {
			continue
		}
		out = append(out, s)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// UpdateStatus applies a transition under optimistic locking on the document
// and the slot. A signal leaving ACTIVE releases its slot in the same
// transaction.
func (r *RedisStore) UpdateStatus(ctx context.Context, id string, to Status, now time.Time) (*Signal, error) {
	key := r.docKey(id)
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	slot := r.slotKey(current.Symbol, current.Direction)

	var updated *Signal
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSignalNotFound
		}
		if err != nil {
			return err
		}
		var s Signal
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode signal %s: %w", id, err)
		}
		wasActive := s.Status == StatusActive
		if err := s.Transition(to, now); err != nil {
			return err
		}
		out, err := json.Marshal(&s)
		if err != nil {
			return err
		}

		holder, err := tx.Get(ctx, slot).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read active slot: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			if wasActive && holder == id {
				pipe.Del(ctx, slot)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = &s
		return nil
	}, key, slot)

	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("signal %s modified concurrently: %w", id, err)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExpireStale expires live signals past their TTL
func (r *RedisStore) ExpireStale(ctx context.Context, now time.Time) ([]*Signal, error) {
	live, err := r.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	var expired []*Signal
	for _, s := range live {
		if s.Status.IsTerminal() || !s.Expired(now) {
			continue
		}
		updated, err := r.UpdateStatus(ctx, s.ID, StatusExpired, now)
		if errors.Is(err, ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired = append(expired, updated)
	}
	return expired, nil
}
