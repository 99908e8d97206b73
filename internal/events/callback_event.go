package events

// CallbackEvent delivers each notified value to registered callbacks,
// synchronously on the notifying goroutine.
type CallbackEvent[T any] struct {
	hub hub[func(T), T]
}

// NewCallbackEvent creates a CallbackEvent. When replayLast is true a new
// listener is immediately called with the most recent value, if there is one.
func NewCallbackEvent[T any](replayLast bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{hub: newHub[func(T), T](replayLast)}
}

// Listen registers callback and returns a function that removes it.
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("events: callback cannot be nil")
	}
	id, last, replay := e.hub.add(callback)
	if replay {
		callback(last)
	}
	return e.hub.remover(id)
}

// Notify calls every registered callback with value. Callbacks run in no
// particular order.
func (e *CallbackEvent[T]) Notify(value T) {
	for _, callback := range e.hub.publish(value) {
		callback(value)
	}
}

// Last returns the most recently notified value.
func (e *CallbackEvent[T]) Last() (T, bool) {
	return e.hub.lastValue()
}

func (e *CallbackEvent[T]) ListenerCount() int {
	return e.hub.count()
}
