// Package events provides an in-process session event bus for figure cache
// invalidation and stats collection.
package events

import (
	"sync"
	"time"
)

// EventType represents the type of session event.
type EventType int

const (
	SessionCreated EventType = iota
	ChartAppended
	ChartRemoved
	SessionDeleted
	InsightsReady
)

// Event represents a session lifecycle event.
type Event struct {
	Type      EventType
	SessionID string
	ChartID   string
	ChartType string
	Path      string // artifact path, set for chart events
	RenderMS  int64  // render duration, set for ChartAppended
	CacheHit  bool   // set for InsightsReady when served from the catalog cache
	Timestamp int64
}

// Bus provides an in-process pub/sub event bus for session lifecycle events.
type Bus struct {
	subscribers sync.Map
	bufferSize  int
}

// NewBus creates a new event bus instance.
func NewBus(bufferSize int) *Bus {
	return &Bus{
		bufferSize: bufferSize,
	}
}

// Publish sends an event to all subscribers.
// Non-blocking: if a subscriber's channel is full, the event is dropped.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixNano()
	}
	b.subscribers.Range(func(key, value interface{}) bool {
		sub := value.(*Subscriber)
		if b.matchesFilter(sub, ev.SessionID) {
			select {
			case sub.Ch <- ev:
			default:
				// Channel full - drop event, do NOT block
			}
		}
		return true
	})
}

// Subscribe adds a new subscriber to the bus with a custom ID.
func (b *Bus) Subscribe(id string, filters []string) *Subscriber {
	ch := make(chan Event, b.bufferSize)
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      ch,
	}
	b.subscribers.Store(sub.ID, sub)
	return sub
}

// SubscribeAutoID adds a new subscriber to the bus with an auto-generated ID.
func (b *Bus) SubscribeAutoID(filters ...string) chan Event {
	id := generateSubscriberID()
	ch := make(chan Event, b.bufferSize)
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      ch,
	}
	b.subscribers.Store(sub.ID, sub)
	return ch
}

// Unsubscribe removes a subscriber from the bus and closes their channel.
func (b *Bus) Unsubscribe(subID string) {
	if value, ok := b.subscribers.LoadAndDelete(subID); ok {
		sub := value.(*Subscriber)
		close(sub.Ch)
	}
}

// matchesFilter checks if the event's session matches the subscriber's filters.
func (b *Bus) matchesFilter(sub *Subscriber, sessionID string) bool {
	if len(sub.Filters) == 0 {
		return true // No filters - receive all events
	}
	for _, filter := range sub.Filters {
		if len(filter) == 0 {
			return true
		}
		if len(sessionID) >= len(filter) && sessionID[:len(filter)] == filter {
			return true
		}
	}
	return false
}

// Subscriber represents an event subscriber.
type Subscriber struct {
	ID      string
	Filters []string
	Ch      chan Event
}

// generateSubscriberID generates a unique subscriber ID.
func generateSubscriberID() string {
	return "sub_" + time.Now().Format("20060102150405000000")
}
