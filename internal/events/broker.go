// Path: internal/events/broker.go
package events

import (
	"sync"

	"top-loras/internal/domain"
)

// Topics published by the fetch orchestrator.
const (
	TopicFetchCompleted = "fetch:completed"
	TopicFetchFailed    = "fetch:failed"
)

// Event represents a message passed through the broker.
type Event struct {
	Topic string
	Data  any
}

// Fetch returns the event payload as a FetchEvent, if it is one.
func (e Event) Fetch() (domain.FetchEvent, bool) {
	fe, ok := e.Data.(domain.FetchEvent)
	return fe, ok
}

// Broker implements a simple in-memory pub/sub system.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe creates a new subscription to a topic.
// It returns a read-only channel where events for that topic will be sent.
func (b *Broker) Subscribe(topic string, buffer int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Publish sends an event to all subscribers of a topic. Subscribers that are
// not keeping up lose the event rather than blocking the publisher.
func (b *Broker) Publish(topic string, data any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Topic: topic, Data: data}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- event:
		default:
		}
	}
}

// PublishFetch routes a fetch result to the completed or failed topic.
func (b *Broker) PublishFetch(ev domain.FetchEvent) {
	if ev.Err != nil {
		b.Publish(TopicFetchFailed, ev)
		return
	}
	b.Publish(TopicFetchCompleted, ev)
}

// Close closes every subscription channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
}
