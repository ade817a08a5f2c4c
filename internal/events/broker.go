package events

import (
	"sync"

	"go.uber.org/zap"

	"domainhub.io/hubd/internal/pkg/logger"
)

// Handler consumes one event. Handlers must not block: the broker calls
// them inline on the publishing goroutine to preserve per-channel FIFO
// order; slow consumers buffer on their own side.
type Handler func(Event)

// Subscription is the disposable handle returned by Subscribe.
type Subscription struct {
	broker  *Broker
	channel Channel
	id      uint64
}

// Unsubscribe removes the handler from the broker. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.broker == nil {
		return
	}
	s.broker.remove(s.channel, s.id)
	s.broker = nil
}

// Broker is the in-process publish/subscribe bus keyed by channel.
// Delivery is fire-and-forget, at-least-once per currently-registered
// subscriber; there is no backlog or replay for late subscribers.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Channel]map[uint64]Handler
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[Channel]map[uint64]Handler),
	}
}

// Subscribe registers a handler on one channel and returns its handle.
func (b *Broker) Subscribe(ch Channel, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	set, ok := b.subs[ch]
	if !ok {
		set = make(map[uint64]Handler)
		b.subs[ch] = set
	}
	set[id] = h
	return &Subscription{broker: b, channel: ch, id: id}
}

// SubscribeAll registers the handler on every channel and returns one
// handle per channel.
func (b *Broker) SubscribeAll(h Handler) []*Subscription {
	channels := Channels()
	subs := make([]*Subscription, 0, len(channels))
	for _, ch := range channels {
		subs = append(subs, b.Subscribe(ch, h))
	}
	return subs
}

// Publish delivers the event to every subscriber of its channel, in
// registration-independent order, synchronously. Publishers on the same
// channel therefore observe FIFO delivery per subscriber.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Channel]))
	for _, h := range b.subs[ev.Channel] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	logger.Debug("event published",
		zap.String("channel", string(ev.Channel)),
		zap.String("action", string(ev.Action)),
		zap.Int("subscribers", len(handlers)),
	)

	for _, h := range handlers {
		h(ev)
	}
}

// SubscriberCount returns the number of handlers on a channel.
func (b *Broker) SubscriberCount(ch Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ch])
}

func (b *Broker) remove(ch Channel, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[ch]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(b.subs, ch)
		}
	}
}
