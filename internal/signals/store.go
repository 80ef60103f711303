package signals

import (
	"context"
	"sync"
	"time"

	"smc-signal-engine/internal/analysis"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Symbol    string
	Direction analysis.Direction
	Status    Status
	Limit     int
}

func (f Filter) matches(s *Signal) bool {
	if f.Symbol != "" && s.Symbol != f.Symbol {
		return false
	}
	if f.Direction != "" && s.Direction != f.Direction {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

// Store persists signals. Create must be atomic with respect to the
// at-most-one ACTIVE signal per symbol and direction rule and returns
// ErrActiveSignalExists when the slot is taken.
type Store interface {
	Create(ctx context.Context, s *Signal) error
	Get(ctx context.Context, id string) (*Signal, error)
	// FindActive returns ErrSignalNotFound when the slot is free
	FindActive(ctx context.Context, symbol string, d analysis.Direction) (*Signal, error)
	// List returns newest first
	List(ctx context.Context, f Filter) ([]*Signal, error)
	UpdateStatus(ctx context.Context, id string, to Status, now time.Time) (*Signal, error)
	// ExpireStale moves every ACTIVE or TRIGGERED signal past its TTL to EXPIRED
	ExpireStale(ctx context.Context, now time.Time) ([]*Signal, error)
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Signal
	active map[string]string // activeKey -> id
	order  []string          // ids in insertion order
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Signal),
		active: make(map[string]string),
	}
}

// Create inserts the signal unless an ACTIVE one holds its slot
func (m *MemoryStore) Create(ctx context.Context, s *Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := activeKey(s.Symbol, s.Direction)
	if s.Status == StatusActive {
		if _, taken := m.active[key]; taken {
			return ErrActiveSignalExists
		}
		m.active[key] = s.ID
	}
	m.byID[s.ID] = s.Clone()
	m.order = append(m.order, s.ID)
	return nil
}

// Get returns a copy of the signal with the given id
func (m *MemoryStore) Get(ctx context.Context, id string) (*Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSignalNotFound
	}
	return s.Clone(), nil
}

// FindActive returns the ACTIVE signal for a symbol and direction
func (m *MemoryStore) FindActive(ctx context.Context, symbol string, d analysis.Direction) (*Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.active[activeKey(symbol, d)]
	if !ok {
		return nil, ErrSignalNotFound
	}
	return m.byID[id].Clone(), nil
}

// List returns matching signals, most recently created first
func (m *MemoryStore) List(ctx context.Context, f Filter) ([]*Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Signal, 0)
	for i := len(m.order) - 1; i >= 0; i-- {
		s := m.byID[m.order[i]]
		if !f.matches(s) {
			continue
		}
		out = append(out, s.Clone())
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// UpdateStatus applies a lifecycle transition
func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, to Status, now time.Time) (*Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(id, to, now)
}

func (m *MemoryStore) updateLocked(id string, to Status, now time.Time) (*Signal, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSignalNotFound
	}
	wasActive := s.Status == StatusActive
	if err := s.Transition(to, now); err != nil {
		return nil, err
	}
	if wasActive {
		key := activeKey(s.Symbol, s.Direction)
		if m.active[key] == id {
			delete(m.active, key)
		}
	}
	return s.Clone(), nil
}

// ExpireStale expires every live signal whose TTL has elapsed
func (m *MemoryStore) ExpireStale(ctx context.Context, now time.Time) ([]*Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*Signal
	for _, id := range m.order {
		s := m.byID[id]
		if s.Status.IsTerminal() || !s.Expired(now) {
			continue
		}
		updated, err := m.updateLocked(id, StatusExpired, now)
		if err != nil {
			return expired, err
		}
		expired = append(expired, updated)
	}
	return expired, nil
}
