package puppet

import "sync"

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(Event)

// Bus is a typed publish/subscribe channel between the adapter and its host.
// Hosts subscribe to all events or to a single type; the adapter publishes
// without knowing who listens.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	typed    map[EventType]map[int]Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[int]Handler),
		typed:    make(map[EventType]map[int]Handler),
	}
}

// Subscribe registers a handler for every event. The returned function
// removes the subscription.
func (b *Bus) Subscribe(h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// SubscribeType registers a handler for a single event type.
func (b *Bus) SubscribeType(t EventType, h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.typed[t] == nil {
		b.typed[t] = make(map[int]Handler)
	}
	b.typed[t][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.typed[t], id)
	}
}

// Publish delivers an event to all matching subscribers.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	all := make([]Handler, 0, len(b.handlers)+len(b.typed[evt.Type()]))
	for _, h := range b.handlers {
		all = append(all, h)
	}
	for _, h := range b.typed[evt.Type()] {
		all = append(all, h)
	}
	b.mu.RUnlock()

	for _, h := range all {
		h(evt)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.handlers)
	for _, m := range b.typed {
		n += len(m)
	}
	return n
}
