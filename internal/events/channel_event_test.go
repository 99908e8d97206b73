package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestNewChannelEvent(t *testing.T) {
	event := NewChannelEvent[string](false)
	require.NotNil(t, event)
	assert.Equal(t, 0, event.ListenerCount())
	assert.False(t, event.hub.replayLast)

	event2 := NewChannelEvent[int](true)
	assert.True(t, event2.hub.replayLast)
}

func TestChannelEvent_ListenNotify(t *testing.T) {
	event := NewChannelEvent[string](false)

	ch := make(chan string, 10)
	unregister := event.Listen(ch)
	assert.Equal(t, 1, event.ListenerCount())

	event.Notify("a")
	event.Notify("b")
	assert.Equal(t, []string{"a", "b"}, drain(ch))

	unregister()
	assert.Equal(t, 0, event.ListenerCount())

	event.Notify("c")
	assert.Empty(t, drain(ch))
}

func TestChannelEvent_ReplayLast(t *testing.T) {
	event := NewChannelEvent[int](true)

	early := make(chan int, 4)
	unregister1 := event.Listen(early)
	assert.Empty(t, drain(early))

	event.Notify(70)

	late := make(chan int, 4)
	unregister2 := event.Listen(late)
	assert.Equal(t, []int{70}, drain(late))

	event.Notify(72)
	assert.Equal(t, []int{70, 72}, drain(early))
	assert.Equal(t, []int{72}, drain(late))

	unregister1()
	unregister2()
}

func TestChannelEvent_NoReplayWhenDisabled(t *testing.T) {
	event := NewChannelEvent[string](false)
	event.Notify("first")

	ch := make(chan string, 2)
	unregister := event.Listen(ch)
	assert.Empty(t, drain(ch))

	event.Notify("second")
	assert.Equal(t, []string{"second"}, drain(ch))
	unregister()
}

func TestChannelEvent_FullChannelDropsValue(t *testing.T) {
	event := NewChannelEvent[string](false)

	ch := make(chan string, 1)
	unregister := event.Listen(ch)
	ch <- "blocking"

	event.Notify("x")
	event.Notify("y")
	assert.Equal(t, uint64(2), event.Dropped())
	assert.Equal(t, []string{"blocking"}, drain(ch))

	event.Notify("z")
	assert.Equal(t, []string{"z"}, drain(ch))

	unregister()
}

func TestChannelEvent_Last(t *testing.T) {
	event := NewChannelEvent[string](false)
	_, ok := event.Last()
	assert.False(t, ok)

	event.Notify("latest")
	v, ok := event.Last()
	require.True(t, ok)
	assert.Equal(t, "latest", v)
}

func TestChannelEvent_Listen_NilChannel(t *testing.T) {
	event := NewChannelEvent[string](false)
	assert.Panics(t, func() {
		event.Listen(nil)
	})
}

func TestChannelEvent_ConcurrentAccess(t *testing.T) {
	event := NewChannelEvent[int](false)

	channels := make([]chan int, 10)
	unregisters := make([]func(), 10)
	for i := range channels {
		channels[i] = make(chan int, 100)
		unregisters[i] = event.Listen(channels[i])
	}

	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		go func(v int) {
			defer wg.Done()
			event.Notify(v)
		}(i)
	}
	wg.Wait()

	for i, ch := range channels {
		assert.Len(t, drain(ch), 5, "channel %d", i)
	}
	for _, u := range unregisters {
		u()
	}
}
