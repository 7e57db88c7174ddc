package event

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/drawbridge/internal/logging"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus(nil)

	called := false
	id := bus.Subscribe(TypeDiagramSaved, func(e Event) {
		called = true
	})

	if id == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", bus.SubscriptionCount())
	}
	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	bus.Subscribe(TypeDiagramSaved, func(e Event) {
		received = e
	})

	bus.Publish(NewDiagramSavedEvent("inst-1", "drawio/a.drawio.svg", 512, []string{"notes/a.md"}))

	saved, ok := received.(DiagramSavedEvent)
	if !ok {
		t.Fatalf("received %T, want DiagramSavedEvent", received)
	}
	if saved.Path != "drawio/a.drawio.svg" || saved.Bytes != 512 {
		t.Errorf("received %+v", saved)
	}
	if len(saved.Referrers) != 1 || saved.Referrers[0] != "notes/a.md" {
		t.Errorf("Referrers = %v", saved.Referrers)
	}
}

func TestBus_PublishMultipleHandlers(t *testing.T) {
	bus := NewBus(nil)

	callCount := 0
	bus.Subscribe("test.event", func(e Event) { callCount++ })
	bus.Subscribe("test.event", func(e Event) { callCount++ })

	bus.Publish(newBaseEvent("test.event"))

	if callCount != 2 {
		t.Errorf("Expected both handlers to be called, got %d calls", callCount)
	}
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe("other.event", func(e Event) {
		t.Error("Handler should not be called for non-matching event type")
	})

	bus.Publish(newBaseEvent("test.event"))
}

func TestBus_PublishNilBus(t *testing.T) {
	var bus *Bus
	bus.Publish(NewNoticeEvent("", NoticeInfo, "ignored"))
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(nil)

	var events []string
	bus.SubscribeAll(func(e Event) {
		events = append(events, e.EventType())
	})

	bus.Publish(NewSessionOpenedEvent("a", "", "http://localhost:1717/"))
	bus.Publish(NewTargetClaimedEvent("a", "drawio/x.drawio"))
	bus.Publish(NewSessionClosedEvent("a", "drawio/x.drawio", "exit", false))

	expected := []string{TypeSessionOpened, TypeTargetClaimed, TypeSessionClosed}
	if len(events) != len(expected) {
		t.Fatalf("got %d events, want %d", len(events), len(expected))
	}
	for i, e := range expected {
		if events[i] != e {
			t.Errorf("events[%d] = %q, want %q", i, events[i], e)
		}
	}
}

func TestBus_SubscribeMany(t *testing.T) {
	bus := NewBus(nil)

	var got []string
	ids := bus.SubscribeMany(func(e Event) {
		got = append(got, e.EventType())
	}, TypeDiagramCreated, TypeDiagramDiscarded)

	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("SubscribeMany() ids = %v", ids)
	}

	bus.Publish(NewDiagramCreatedEvent("a", "drawio/d.drawio.svg", "note.md"))
	bus.Publish(NewDiagramSavedEvent("a", "drawio/d.drawio.svg", 10, nil))
	bus.Publish(NewDiagramDiscardedEvent("a", "drawio/d.drawio.svg", ".trash/d.drawio.svg", 1))

	if len(got) != 2 || got[0] != TypeDiagramCreated || got[1] != TypeDiagramDiscarded {
		t.Errorf("received %v", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	called := false
	id := bus.Subscribe("test.event", func(e Event) { called = true })

	if !bus.Unsubscribe(id) {
		t.Error("Unsubscribe should return true when subscription exists")
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bus.SubscriptionCount())
	}

	bus.Publish(newBaseEvent("test.event"))
	if called {
		t.Error("Handler should not be called after unsubscribing")
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe should return false the second time")
	}
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	var id string
	id = bus.Subscribe("test.event", func(e Event) {
		calls++
		bus.Unsubscribe(id)
	})
	bus.Subscribe("test.event", func(e Event) { calls++ })

	bus.Publish(newBaseEvent("test.event"))
	bus.Publish(newBaseEvent("test.event"))

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe("event.one", func(e Event) {})
	bus.Subscribe("event.two", func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	if bus.SubscriptionCount() != 3 {
		t.Errorf("SubscriptionCount() before clear = %d, want 3", bus.SubscriptionCount())
	}

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() after clear = %d, want 0", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewLoggerTo(&buf, logging.LevelDebug))

	calls := 0
	bus.Subscribe(TypeNotice, func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe(TypeNotice, func(e Event) {
		calls++
	})

	bus.Publish(NewNoticeEvent("a", NoticeError, "could not save"))

	if calls != 2 {
		t.Errorf("Expected both handlers to be called despite panic, got %d calls", calls)
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("panic was not logged, got %q", buf.String())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	calls := 0
	bus.Subscribe("test.event", func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(newBaseEvent("test.event"))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("Expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe("test.event", func(e Event) {})
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bus.SubscriptionCount())
	}
}

func TestBus_UniqueIDs(t *testing.T) {
	bus := NewBus(nil)

	ids := make(map[string]bool)
	for range 1000 {
		id := bus.Subscribe("test.event", func(e Event) {})
		if ids[id] {
			t.Errorf("Duplicate subscription ID: %s", id)
		}
		ids[id] = true
	}
}

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{NewDiagramCreatedEvent("a", "p", "d"), TypeDiagramCreated},
		{NewDiagramSavedEvent("a", "p", 1, nil), TypeDiagramSaved},
		{NewDiagramDiscardedEvent("a", "p", "t", 0), TypeDiagramDiscarded},
		{NewDiagramChangedEvent("p", true), TypeDiagramChanged},
		{NewSessionOpenedEvent("a", "p", "u"), TypeSessionOpened},
		{NewSessionClosedEvent("a", "p", "exit", true), TypeSessionClosed},
		{NewTargetClaimedEvent("a", "p"), TypeTargetClaimed},
		{NewTargetReleasedEvent("a", "p"), TypeTargetReleased},
		{NewNoticeEvent("a", NoticeWarning, "m"), TypeNotice},
	}

	for _, tt := range tests {
		if got := tt.event.EventType(); got != tt.want {
			t.Errorf("EventType() = %q, want %q", got, tt.want)
		}
		if tt.event.Timestamp().IsZero() {
			t.Errorf("%s has zero timestamp", tt.want)
		}
	}
}
