// Package notify carries "something changed" messages from the event feed
// and the API to whoever renders the console: websocket clients, the desktop
// shell, and other server instances.
package notify

import (
	"context"
	"sync"
	"time"
)

// Kind identifies what changed.
type Kind string

const (
	// EventsReplaced means the event list was replaced by a newer one.
	EventsReplaced Kind = "events.replaced"
	// EventAdded means an operator event was added optimistically.
	EventAdded Kind = "event.added"
	// TimeframeMarked means a timeline selection was committed.
	TimeframeMarked Kind = "timeframe.marked"
)

// Message is a change notification. Receivers re-read state; messages do
// not carry the event list itself.
type Message struct {
	Kind    Kind      `json:"kind"`
	Version uint64    `json:"version,omitempty"`
	Count   int       `json:"count,omitempty"`
	ID      string    `json:"id,omitempty"`
	Source  string    `json:"source,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier publishes messages.
type Notifier interface {
	Publish(ctx context.Context, m Message) error
}

// Bus is an in-memory fan-out of messages to channel subscribers.
// A subscriber that falls behind loses messages rather than blocking the
// publisher; the next message tells it to re-read anyway.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Message
	next    int
	closed  bool
	dropped uint64
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Message)}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel func unregisters it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers m to every subscriber without blocking.
func (b *Bus) Publish(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.At.IsZero() {
		m.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- m:
		default:
			b.dropped++
		}
	}
	return nil
}

// Subscribers returns the number of registered subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Close unregisters and closes every subscriber. Later subscriptions get
// an already-closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Multi publishes to several notifiers and returns the first error.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, msg Message) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Publish(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
