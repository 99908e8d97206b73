// Package bttest provides in-memory bt.Connector and bt.Link fakes.
package bttest

import (
	"context"
	"errors"
	"sync"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/bt"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

var ErrNoDevice = errors.New("no matching device")

// Verify fakes implement the bt interfaces
var (
	_ bt.Connector = (*FakeConnector)(nil)
	_ bt.Link      = (*FakeLink)(nil)
)

type result struct {
	link bt.Link
	err  error
}

// Attempt is a Connect call waiting for the test to resolve it.
type Attempt struct {
	Filter  sensor.ScanFilter
	resolve chan result
}

func (a *Attempt) Succeed(link bt.Link) {
	a.resolve <- result{link: link}
}

func (a *Attempt) Fail(err error) {
	a.resolve <- result{err: err}
}

// FakeConnector hands out queued results, or when gated, blocks each Connect
// until the test resolves the published Attempt.
type FakeConnector struct {
	mu    sync.Mutex
	queue []result
	gated bool
	// ignoreCancel makes gated attempts wait for resolution even after ctx
	// is done, like a stack that finishes connecting regardless.
	ignoreCancel bool
	attempts     chan *Attempt
	calls        int
}

func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		attempts: make(chan *Attempt, 16),
	}
}

func (c *FakeConnector) QueueLink(link bt.Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, result{link: link})
}

func (c *FakeConnector) QueueError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, result{err: err})
}

// Gate makes later Connect calls block until resolved through Attempts.
func (c *FakeConnector) Gate(ignoreCancel bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gated = true
	c.ignoreCancel = ignoreCancel
}

func (c *FakeConnector) Attempts() <-chan *Attempt {
	return c.attempts
}

func (c *FakeConnector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *FakeConnector) Connect(ctx context.Context, filter sensor.ScanFilter) (bt.Link, error) {
	c.mu.Lock()
	c.calls++
	gated, ignoreCancel := c.gated, c.ignoreCancel
	if !gated {
		defer c.mu.Unlock()
		if len(c.queue) == 0 {
			return nil, ErrNoDevice
		}
		r := c.queue[0]
		c.queue = c.queue[1:]
		return r.link, r.err
	}
	c.mu.Unlock()

	attempt := &Attempt{Filter: filter, resolve: make(chan result, 1)}
	c.attempts <- attempt

	if ignoreCancel {
		r := <-attempt.resolve
		return r.link, r.err
	}
	select {
	case r := <-attempt.resolve:
		return r.link, r.err
	case <-ctx.Done():
		// release whatever the test resolves with later
		go func() {
			if r := <-attempt.resolve; r.link != nil {
				_ = r.link.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Write is one recorded FakeLink write.
type Write struct {
	ServiceUUID        string
	CharacteristicUUID string
	Data               []byte
}

// FakeLink is an in-memory Link. Emit delivers a notification to the
// current subscriber on the caller's goroutine.
type FakeLink struct {
	address string
	name    string

	mu              sync.Mutex
	characteristics map[string]bool
	subscribers     map[string]func([]byte)
	writes          []Write
	closeCount      int
	subscribeErr    error
	writeErr        error

	lost     chan struct{}
	lostOnce sync.Once
}

// NewFakeLink creates a link exposing the given streams' characteristics.
func NewFakeLink(address, name string, streams ...sensor.DataStream) *FakeLink {
	l := &FakeLink{
		address:         address,
		name:            name,
		characteristics: make(map[string]bool),
		subscribers:     make(map[string]func([]byte)),
		lost:            make(chan struct{}),
	}
	for _, s := range streams {
		l.characteristics[key(s.ServiceUUID, s.CharacteristicUUID)] = true
	}
	return l
}

func key(serviceUUID, characteristicUUID string) string {
	return serviceUUID + "_" + characteristicUUID
}

func (l *FakeLink) Address() string { return l.address }
func (l *FakeLink) Name() string    { return l.name }

func (l *FakeLink) HasCharacteristic(serviceUUID, characteristicUUID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.characteristics[key(serviceUUID, characteristicUUID)]
}

func (l *FakeLink) SetSubscribeError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribeErr = err
}

func (l *FakeLink) SetWriteError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

func (l *FakeLink) Subscribe(serviceUUID, characteristicUUID string, callback func([]byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closeCount > 0 {
		return bt.ErrLinkClosed
	}
	if l.subscribeErr != nil {
		return l.subscribeErr
	}
	k := key(serviceUUID, characteristicUUID)
	if !l.characteristics[k] {
		return bt.ErrCharacteristicNotFound
	}
	l.subscribers[k] = callback
	return nil
}

func (l *FakeLink) Unsubscribe(serviceUUID, characteristicUUID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subscribers, key(serviceUUID, characteristicUUID))
	return nil
}

func (l *FakeLink) Subscribed(serviceUUID, characteristicUUID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.subscribers[key(serviceUUID, characteristicUUID)]
	return ok
}

// Emit delivers buf to the subscriber of the stream, reporting whether
// there was one.
func (l *FakeLink) Emit(stream sensor.DataStream, buf []byte) bool {
	l.mu.Lock()
	callback := l.subscribers[key(stream.ServiceUUID, stream.CharacteristicUUID)]
	l.mu.Unlock()
	if callback == nil {
		return false
	}
	callback(buf)
	return true
}

func (l *FakeLink) Write(serviceUUID, characteristicUUID string, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closeCount > 0 {
		return bt.ErrLinkClosed
	}
	if l.writeErr != nil {
		return l.writeErr
	}
	if !l.characteristics[key(serviceUUID, characteristicUUID)] {
		return bt.ErrCharacteristicNotFound
	}
	l.writes = append(l.writes, Write{
		ServiceUUID:        serviceUUID,
		CharacteristicUUID: characteristicUUID,
		Data:               append([]byte(nil), data...),
	})
	return nil
}

func (l *FakeLink) Writes() []Write {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Write(nil), l.writes...)
}

func (l *FakeLink) Close() error {
	l.mu.Lock()
	l.closeCount++
	l.subscribers = make(map[string]func([]byte))
	l.mu.Unlock()
	l.markLost()
	return nil
}

func (l *FakeLink) CloseCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCount
}

// Drop simulates the device going out of range.
func (l *FakeLink) Drop() {
	l.markLost()
}

func (l *FakeLink) markLost() {
	l.lostOnce.Do(func() { close(l.lost) })
}

func (l *FakeLink) Lost() <-chan struct{} {
	return l.lost
}
