package events

import "sync/atomic"

// ChannelEvent fans notified values out to registered channels. Sends never
// block: a listener whose buffer is full misses that value.
type ChannelEvent[T any] struct {
	hub     hub[chan<- T, T]
	dropped atomic.Uint64
}

// NewChannelEvent creates a ChannelEvent. When replayLast is true a new
// listener is sent the most recent value, if there is one and the channel has
// room for it.
func NewChannelEvent[T any](replayLast bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{hub: newHub[chan<- T, T](replayLast)}
}

// Listen registers ch and returns a function that removes it.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("events: channel cannot be nil")
	}
	id, last, replay := e.hub.add(ch)
	if replay {
		e.send(ch, last)
	}
	return e.hub.remover(id)
}

func (e *ChannelEvent[T]) Notify(value T) {
	for _, ch := range e.hub.publish(value) {
		e.send(ch, value)
	}
}

func (e *ChannelEvent[T]) send(ch chan<- T, value T) {
	select {
	case ch <- value:
	default:
		e.dropped.Add(1)
	}
}

// Last returns the most recently notified value.
func (e *ChannelEvent[T]) Last() (T, bool) {
	return e.hub.lastValue()
}

// Dropped counts values skipped because a listener channel was full.
func (e *ChannelEvent[T]) Dropped() uint64 {
	return e.dropped.Load()
}

func (e *ChannelEvent[T]) ListenerCount() int {
	return e.hub.count()
}
