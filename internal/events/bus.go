// Package events is an explicit publish/subscribe channel between
// components that must stay decoupled: emitters do not know their
// subscribers. It replaces ambient broadcast events with an injected bus.
package events

import "sync"

// Topic identifies one notification stream.
type Topic string

const (
	// TopicCoinsUpdated fires after the known coin balance changes.
	TopicCoinsUpdated Topic = "coins.updated"
	// TopicClothingChanged fires after the owned set or active item changes.
	TopicClothingChanged Topic = "clothing.changed"
	// TopicCoinsRefresh asks the balance owner to re-fetch server truth.
	TopicCoinsRefresh Topic = "coins.refresh"
)

// Event is one published notification.
type Event struct {
	Topic  Topic
	UserID int64
	Value  int64
}

// Bus fans events out to topic subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan Event)}
}

// Subscribe registers a buffered subscription to one topic. The returned
// cancel func removes the subscription and closes the channel.
func (b *Bus) Subscribe(topic Topic, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		channels := b.subs[topic]
		for i, c := range channels {
			if c == ch {
				b.subs[topic] = append(channels[:i], channels[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of its topic without
// blocking. A subscriber whose buffer is full misses the event; consumers
// needing every update must drain promptly or re-fetch on receipt.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.Topic] {
		select {
		case ch <- event:
		default:
		}
	}
}
