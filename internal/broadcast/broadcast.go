package broadcast

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain event names.
const (
	EventCreated   = "clipboard:created"
	EventDeleted   = "clipboard:deleted"
	EventReordered = "clipboard:reordered"
)

// An Event is a named domain notification fanned out to subscribers.
type Event struct {
	Name string
	Data interface{}
}

var (
	publishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipvault_events_published_total",
		Help: "Number of domain events published.",
	})
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clipvault_events_dropped_total",
		Help: "Number of events skipped because a subscriber's backlog was full.",
	})
)

const subscriberBuffer = 64

// A Broadcaster fans events out to any number of subscribers.
//
// Publishing never blocks and never waits on a database transaction: a
// subscriber whose backlog is full silently skips the event. A publish with
// zero subscribers is a no-op.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool
}

// New returns an empty broadcaster.
func New() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan Event)}
}

// Subscribe attaches a new subscriber. The returned cancel detaches it and
// closes its channel. Subscribing to a closed broadcaster yields an already
// closed channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Publish fans the event out to every attached subscriber.
func (b *Broadcaster) Publish(name string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	publishedTotal.Inc()
	for _, ch := range b.subs {
		select {
		case ch <- Event{Name: name, Data: data}:
		default:
			droppedTotal.Inc()
		}
	}
}

// Close ends all subscriptions. Further publishes are dropped.
func (b *Broadcaster) Close() {
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
