package events

import "sync"

// hub is the listener registry shared by CallbackEvent and ChannelEvent.
// L is the listener type (a callback or a channel), T the published value.
type hub[L any, T any] struct {
	mu         sync.RWMutex
	listeners  map[uint64]L
	nextID     uint64
	replayLast bool
	last       T
	hasLast    bool
}

func newHub[L any, T any](replayLast bool) hub[L, T] {
	return hub[L, T]{
		listeners:  make(map[uint64]L),
		replayLast: replayLast,
	}
}

// add registers l and reports the value it should be primed with, if any.
func (h *hub[L, T]) add(l L) (id uint64, last T, replay bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id = h.nextID
	h.nextID++
	h.listeners[id] = l
	return id, h.last, h.replayLast && h.hasLast
}

func (h *hub[L, T]) remover(id uint64) func() {
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// publish records value and returns a snapshot of the listeners to deliver
// it to. Delivery happens outside the lock so listeners may re-enter.
func (h *hub[L, T]) publish(value T) []L {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = value
	h.hasLast = true
	out := make([]L, 0, len(h.listeners))
	for _, l := range h.listeners {
		out = append(out, l)
	}
	return out
}

func (h *hub[L, T]) lastValue() (T, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.hasLast
}

func (h *hub[L, T]) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
