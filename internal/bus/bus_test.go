package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conversations.", 10)
	defer unsub()

	b.Emit(KindConversationsChanged, int64(7))

	select {
	case evt := <-ch:
		if evt.Kind != KindConversationsChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindConversationsChanged)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Emit did not stamp the event time")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("remote.", 10)
	defer unsub()

	b.Emit(KindConversationsChanged, nil)
	b.Emit(KindRemoteConnected, nil)

	select {
	case evt := <-ch:
		if evt.Kind != KindRemoteConnected {
			t.Errorf("got kind %q, want %q", evt.Kind, KindRemoteConnected)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The conversations event must not have been delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("remote.", 10)
	unsub()

	b.Emit(KindRemoteConnected, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Emit("test.one", nil)
	// Buffer is full: this one is dropped rather than blocking.
	b.Emit("test.two", nil)

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}
