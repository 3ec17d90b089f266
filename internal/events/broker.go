package events

import (
	"context"
	"sync"
	"time"
)

const (
	IncidentCreated         = "incident.created"
	IncidentStatusChanged   = "incident.status_changed"
	VolunteerCreated        = "volunteer.created"
	DonationCreated         = "donation.created"
	DonationStatusChanged   = "donation.status_changed"
	AssignmentCreated       = "assignment.created"
	AssignmentStatusChanged = "assignment.status_changed"
)

// Event describes a change to a relief record for feed consumers.
type Event struct {
	Type     string    `json:"type"`
	EntityID string    `json:"entity_id"`
	Status   string    `json:"status,omitempty"`
	Version  int64     `json:"version"`
	At       time.Time `json:"at"`
}

// Broker fans events out to all active subscribers (SSE clients).
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	buffer int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Event), buffer: 16}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when ctx ends.
func (b *Broker) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *Broker) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers reports the number of attached subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
