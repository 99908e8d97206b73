package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCallbackEvent(t *testing.T) {
	event := NewCallbackEvent[string](false)
	require.NotNil(t, event)
	assert.Equal(t, 0, event.ListenerCount())
	assert.False(t, event.hub.replayLast)

	event2 := NewCallbackEvent[int](true)
	assert.True(t, event2.hub.replayLast)
}

func TestCallbackEvent_ListenNotify(t *testing.T) {
	event := NewCallbackEvent[string](false)

	var received []string
	unregister := event.Listen(func(value string) {
		received = append(received, value)
	})
	assert.Equal(t, 1, event.ListenerCount())

	event.Notify("connecting")
	event.Notify("connected")
	assert.Equal(t, []string{"connecting", "connected"}, received)

	unregister()
	assert.Equal(t, 0, event.ListenerCount())

	event.Notify("disconnected")
	assert.Len(t, received, 2)
}

func TestCallbackEvent_MultipleListeners(t *testing.T) {
	event := NewCallbackEvent[int](false)

	var first, second []int
	unregister1 := event.Listen(func(v int) { first = append(first, v) })
	unregister2 := event.Listen(func(v int) { second = append(second, v) })

	event.Notify(250)
	event.Notify(300)

	assert.Equal(t, []int{250, 300}, first)
	assert.Equal(t, []int{250, 300}, second)

	unregister1()
	unregister2()
	assert.Equal(t, 0, event.ListenerCount())
}

func TestCallbackEvent_ReplayLast(t *testing.T) {
	event := NewCallbackEvent[string](true)

	var early []string
	unregister1 := event.Listen(func(v string) { early = append(early, v) })
	// nothing to replay yet
	assert.Empty(t, early)

	event.Notify("first")

	var late []string
	unregister2 := event.Listen(func(v string) { late = append(late, v) })
	assert.Equal(t, []string{"first"}, late)

	event.Notify("second")
	assert.Equal(t, []string{"first", "second"}, early)
	assert.Equal(t, []string{"first", "second"}, late)

	unregister1()
	unregister2()
}

func TestCallbackEvent_NoReplayWhenDisabled(t *testing.T) {
	event := NewCallbackEvent[string](false)
	event.Notify("first")

	var received []string
	unregister := event.Listen(func(v string) { received = append(received, v) })
	assert.Empty(t, received)

	event.Notify("second")
	assert.Equal(t, []string{"second"}, received)
	unregister()
}

func TestCallbackEvent_Last(t *testing.T) {
	event := NewCallbackEvent[int](false)

	_, ok := event.Last()
	assert.False(t, ok)

	event.Notify(7)
	v, ok := event.Last()
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestCallbackEvent_ListenerMayUnregisterDuringNotify(t *testing.T) {
	event := NewCallbackEvent[int](false)

	calls := 0
	var unregister func()
	unregister = event.Listen(func(int) {
		calls++
		unregister()
	})

	event.Notify(1)
	event.Notify(2)
	assert.Equal(t, 1, calls)
}

func TestCallbackEvent_ConcurrentAccess(t *testing.T) {
	event := NewCallbackEvent[int](false)

	var wg sync.WaitGroup
	var mu sync.Mutex
	received := 0
	unregisters := make([]func(), 10)

	wg.Add(10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			defer wg.Done()
			u := event.Listen(func(int) {
				mu.Lock()
				received++
				mu.Unlock()
			})
			mu.Lock()
			unregisters[i] = u
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, event.ListenerCount())

	wg.Add(5)
	for i := 0; i < 5; i++ {
		go func(v int) {
			defer wg.Done()
			event.Notify(v)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 50, received)
	mu.Unlock()

	for _, u := range unregisters {
		u()
	}
	assert.Equal(t, 0, event.ListenerCount())
}

func TestCallbackEvent_Listen_NilCallback(t *testing.T) {
	event := NewCallbackEvent[string](false)
	assert.Panics(t, func() {
		event.Listen(nil)
	})
}

func TestCallbackEvent_StructValues(t *testing.T) {
	type reading struct {
		Role  string
		Watts int
	}
	event := NewCallbackEvent[reading](true)
	event.Notify(reading{Role: "trainer", Watts: 200})

	var got reading
	unregister := event.Listen(func(r reading) { got = r })
	assert.Equal(t, reading{Role: "trainer", Watts: 200}, got)
	unregister()
}
