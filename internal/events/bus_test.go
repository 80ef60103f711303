package events

import (
	"errors"
	"testing"
	"time"

	"smc-signal-engine/internal/signals"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

// TestPublishDeliversToTypedAndAllSubscribers tests fan-out
func TestPublishDeliversToTypedAndAllSubscribers(t *testing.T) {
	bus := NewEventBus()
	typed := make(chan Event, 1)
	all := make(chan Event, 2)

	bus.Subscribe(EventSignalGenerated, func(e Event) { typed <- e })
	bus.SubscribeAll(func(e Event) { all <- e })

	bus.PublishSignalGenerated(&signals.Signal{ID: "abc", Symbol: "BTCUSDT"})

	ev := receive(t, typed)
	if ev.Type != EventSignalGenerated {
		t.Errorf("Expected SIGNAL_GENERATED, got %s", ev.Type)
	}
	if s, ok := ev.Data["signal"].(*signals.Signal); !ok || s.ID != "abc" {
		t.Errorf("Expected the signal payload, got %v", ev.Data["signal"])
	}
	if ev.Timestamp.IsZero() {
		t.Error("Expected the timestamp to be set")
	}
	receive(t, all)
}

// TestPublishSkipsOtherTypes tests that typed subscribers only see their type
func TestPublishSkipsOtherTypes(t *testing.T) {
	bus := NewEventBus()
	typed := make(chan Event, 1)
	all := make(chan Event, 1)
	bus.Subscribe(EventScanCompleted, func(e Event) { typed <- e })
	bus.SubscribeAll(func(e Event) { all <- e })

	bus.PublishScanSymbolError("scan-1", "ETHUSDT", errors.New("boom"))

	ev := receive(t, all)
	if ev.Data["error"] != "boom" || ev.Data["symbol"] != "ETHUSDT" {
		t.Errorf("Unexpected payload %v", ev.Data)
	}
	select {
	case ev := <-typed:
		t.Errorf("Did not expect %s on the scan completed subscriber", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestPublishScanCompleted tests the scan summary payload
func TestPublishScanCompleted(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 1)
	bus.Subscribe(EventScanCompleted, func(e Event) { ch <- e })

	bus.PublishScanCompleted("scan-1", 10, 2, 5, 1, 2, 1500*time.Millisecond)

	ev := receive(t, ch)
	if ev.Data["created"] != 2 || ev.Data["duration_ms"] != int64(1500) {
		t.Errorf("Unexpected payload %v", ev.Data)
	}
}
