package eventbus

import (
	"testing"

	"github.com/kilianp07/mixbot/core/events"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Publish(events.ChannelEvent{Channel: 3, Action: events.ChannelActivated})
	v := <-ch
	ev, ok := v.(events.ChannelEvent)
	if !ok || ev.Channel != 3 {
		t.Fatalf("unexpected event %#v", v)
	}
	bus.Unsubscribe(ch)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewWithBuffer(1)
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	if bus.Dropped() != 1 {
		t.Fatalf("expected 1 dropped got %d", bus.Dropped())
	}
	if v := <-ch; v != 1 {
		t.Fatalf("expected first event got %v", v)
	}
}

func TestBusClose(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	bus.Publish("ignored")
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("subscribe after close must return a closed channel")
	}
}

func TestBusUnsubscribeAfterClose(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestNopBus(t *testing.T) {
	var b EventBus = NopBus{}
	b.Publish("x")
	if _, ok := <-b.Subscribe(); ok {
		t.Fatalf("expected closed channel")
	}
}
