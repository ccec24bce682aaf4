// Package bus implements the event bus bridging background producers to
// live subscribers. Publishers never block; each subscriber owns a bounded
// queue and newly attached subscribers receive a replay of recent history
// before any live event.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultHistorySize is the capacity of the replay ring buffer.
	DefaultHistorySize = 300
	// DefaultQueueSize is the per-subscriber queue capacity.
	DefaultQueueSize = 256
)

// Event is a single published event.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	TS   time.Time   `json:"ts"`
}

// Subscriber is a handle to one attached consumer.
type Subscriber struct {
	id string
	ch chan Event
}

// Events returns the subscriber's receive channel. History replay events
// are delivered before any live event.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Config holds event bus configuration.
type Config struct {
	Logger      *zap.Logger
	HistorySize int
	QueueSize   int
}

// Bus is a thread-safe publish/subscribe hub with ring-buffered history.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	history     []Event
	historyCap  int
	queueSize   int
	logger      *zap.Logger
}

// New creates an event bus.
func New(cfg *Config) *Bus {
	historyCap := cfg.HistorySize
	if historyCap <= 0 {
		historyCap = DefaultHistorySize
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Bus{
		subscribers: make(map[string]*Subscriber),
		history:     make([]Event, 0, historyCap),
		historyCap:  historyCap,
		queueSize:   queueSize,
		logger:      cfg.Logger,
	}
}

// Publish delivers an event to all subscribers and appends it to history.
// Never blocks: when a subscriber's queue is full its oldest event is
// dropped to make room.
func (b *Bus) Publish(topic string, data interface{}) {
	event := Event{Type: topic, Data: data, TS: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.history) == b.historyCap {
		copy(b.history, b.history[1:])
		b.history = b.history[:b.historyCap-1]
	}
	b.history = append(b.history, event)

	for _, sub := range b.subscribers {
		b.deliver(sub, event)
	}

	EventsPublishedTotal.WithLabelValues(topic).Inc()
}

// deliver pushes an event onto a subscriber queue, dropping the oldest
// queued event when full. Caller holds b.mu, so nobody else can fill the
// channel between the drop and the send.
func (b *Bus) deliver(sub *Subscriber, event Event) {
	select {
	case sub.ch <- event:
		return
	default:
	}

	select {
	case dropped := <-sub.ch:
		EventsDroppedTotal.Inc()
		if b.logger != nil {
			b.logger.Warn("subscriber-queue-full-dropping-oldest",
				zap.String("subscriber-id", sub.id),
				zap.String("dropped-topic", dropped.Type))
		}
	default:
	}

	select {
	case sub.ch <- event:
	default:
	}
}

// Subscribe attaches a new subscriber. History is replayed into its queue
// before it is added to the live delivery list.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.New().String(),
		ch: make(chan Event, b.queueSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, event := range b.history {
		b.deliver(sub, event)
	}
	b.subscribers[sub.id] = sub
	SubscribersGauge.Set(float64(len(b.subscribers)))

	return sub
}

// Unsubscribe detaches a subscriber and closes its channel. Idempotent.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub.id]; !ok {
		return
	}

	delete(b.subscribers, sub.id)
	close(sub.ch)
	SubscribersGauge.Set(float64(len(b.subscribers)))
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, len(b.history))
	copy(out, b.history)

	return out
}

// Close detaches all subscribers.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
	SubscribersGauge.Set(0)
}
