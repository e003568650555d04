package events

import (
	"testing"
	"time"
)

func recv(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubPublishReachesSubscribers(t *testing.T) {
	h := NewEventHub()
	a := h.Subscribe()
	b := h.Subscribe()

	h.Publish(HeightChanged, HeightChangedEvent{HeightCm: 74, Ts: 1})

	for _, ch := range []chan Event{a, b} {
		ev := recv(t, ch)
		if ev.Name != HeightChanged {
			t.Errorf("event name = %q, want %q", ev.Name, HeightChanged)
		}
		payload, err := DecodeAs[HeightChangedEvent](ev)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.HeightCm != 74 {
			t.Errorf("heightCm = %d, want 74", payload.HeightCm)
		}
	}
}

func TestHubSlowSubscriberDropsEvents(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()

	// Overfill the buffer; the excess must be dropped, not block.
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(ModeChanged, ModeChangedEvent{From: "idle", To: "seek", Ts: int64(i)})
	}
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered events = %d, want %d", got, subscriberBuffer)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}

	// A second unsubscribe of the same channel must not panic.
	h.Unsubscribe(ch)
	h.Publish(DeskError, DeskErrorEvent{Code: 2, Message: "sensor fault"})
}

func TestHubClose(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	h.Close()

	if _, open := <-ch; open {
		t.Error("subscriber channel still open after hub close")
	}
	if late := h.Subscribe(); late == nil {
		t.Error("subscribe after close returned nil channel")
	} else if _, open := <-late; open {
		t.Error("late subscriber channel not closed")
	}

	// Publishing into a closed hub is a no-op.
	h.Publish(PresetSaved, PresetSavedEvent{Slot: "sit", HeightCm: 62})
}

func TestHubNilPublish(t *testing.T) {
	var h *EventHub
	h.Publish(ScheduleFired, ScheduleFiredEvent{Name: "morning", Action: "stand", Result: "done"})
}
