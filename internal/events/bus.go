package events

import (
	"sync"
	"time"

	"smc-signal-engine/internal/signals"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated     EventType = "SIGNAL_GENERATED"
	EventSignalStatusChanged EventType = "SIGNAL_STATUS_CHANGED"
	EventScanCompleted       EventType = "SCAN_COMPLETED"
	EventScanSymbolError     EventType = "SCAN_SYMBOL_ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
	now         func() time.Time
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
		now:         time.Now,
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Each subscriber runs in its own
// goroutine so a slow consumer never blocks the scanner.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = eb.now()
	}

	for _, sub := range eb.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignalGenerated publishes a newly stored signal
func (eb *EventBus) PublishSignalGenerated(s *signals.Signal) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"signal": s,
		},
	})
}

// PublishSignalStatusChanged publishes a lifecycle transition
func (eb *EventBus) PublishSignalStatusChanged(s *signals.Signal, from signals.Status, cause string) {
	eb.Publish(Event{
		Type: EventSignalStatusChanged,
		Data: map[string]interface{}{
			"signal_id": s.ID,
			"symbol":    s.Symbol,
			"from":      from,
			"to":        s.Status,
			"cause":     cause,
		},
	})
}

// PublishScanCompleted publishes the summary of a finished scan
func (eb *EventBus) PublishScanCompleted(scanID string, total, created, filtered, skipped, failed int, duration time.Duration) {
	eb.Publish(Event{
		Type: EventScanCompleted,
		Data: map[string]interface{}{
			"scan_id":     scanID,
			"total":       total,
			"created":     created,
			"filtered":    filtered,
			"skipped":     skipped,
			"errors":      failed,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// PublishScanSymbolError publishes a per-symbol failure
func (eb *EventBus) PublishScanSymbolError(scanID, symbol string, err error) {
	data := map[string]interface{}{
		"scan_id": scanID,
		"symbol":  symbol,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventScanSymbolError,
		Data: data,
	})
}
