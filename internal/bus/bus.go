// Package bus is the in-process event spine. Producers publish typed
// events keyed by dotted kind strings; consumers subscribe to a prefix
// ("chat.", "tg.", or "" for everything). Delivery never blocks a
// publisher: a subscriber that falls behind loses events.
package bus

import (
	"strings"
	"sync"
	"time"
)

type subscriber struct {
	id     int
	prefix string
	ch     chan Event
}

// Bus fans events out to prefix-matched subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs []subscriber
	next int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Kind.
// Full subscriber channels are skipped.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := range b.subs {
		if !strings.HasPrefix(evt.Kind, b.subs[i].prefix) {
			continue
		}
		select {
		case b.subs[i].ch <- evt:
		default:
		}
	}
}

// Emit publishes payload under kind, stamped with the current time.
func (b *Bus) Emit(kind string, payload any) {
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Subscribe registers a prefix subscription with a buffered channel of
// bufSize. The returned func removes the subscription; the channel is
// never closed.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscriber{id: id, prefix: prefix, ch: ch})
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.subs {
			if b.subs[i].id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}
