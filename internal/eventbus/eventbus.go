// Package eventbus fans mixer events out to observers such as the journal,
// the metrics sinks and the log.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// DefaultBuffer is the per-subscriber channel capacity used by New.
const DefaultBuffer = 32

// Bus is the default EventBus implementation using fan-out channels.
// Publishing never blocks: a subscriber whose buffer is full misses the event
// and the miss is counted.
type Bus struct {
	mu      sync.RWMutex
	subs    []chan Event
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

// New creates a Bus with DefaultBuffer slots per subscriber.
func New() *Bus { return NewWithBuffer(DefaultBuffer) }

// NewWithBuffer creates a Bus with the given per-subscriber capacity.
func NewWithBuffer(n int) *Bus {
	if n <= 0 {
		n = DefaultBuffer
	}
	return &Bus{buffer: n}
}

// Publish sends the event to all subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// NopBus discards every event.
type NopBus struct{}

func (NopBus) Publish(Event) {}
func (NopBus) Subscribe() <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}
func (NopBus) Unsubscribe(<-chan Event) {}
func (NopBus) Close()                   {}
