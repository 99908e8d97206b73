package bt

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracked struct {
	lost   atomic.Int32
	closed atomic.Int32
}

func (f *fakeTracked) markLost() { f.lost.Add(1) }

func (f *fakeTracked) Close() error {
	f.closed.Add(1)
	return nil
}

func TestLinkRegistry_SameDeviceTwoRoles(t *testing.T) {
	r := newLinkRegistry()
	trainer, power := &fakeTracked{}, &fakeTracked{}
	r.add("c0:ff:ee:00:00:01", trainer)
	r.add("C0:FF:EE:00:00:01", power)

	assert.Equal(t, 2, r.markLost("C0:FF:EE:00:00:01"))
	assert.Equal(t, int32(1), trainer.lost.Load())
	assert.Equal(t, int32(1), power.lost.Load())

	// already forgotten
	assert.Equal(t, 0, r.markLost("C0:FF:EE:00:00:01"))
}

func TestLinkRegistry_RemoveKeepsOtherLinks(t *testing.T) {
	r := newLinkRegistry()
	trainer, power := &fakeTracked{}, &fakeTracked{}
	r.add("AA", trainer)
	r.add("AA", power)

	r.remove("aa", trainer)
	r.remove("BB", trainer)

	assert.Equal(t, 1, r.markLost("AA"))
	assert.Zero(t, trainer.lost.Load())
	assert.Equal(t, int32(1), power.lost.Load())
}

func TestLinkRegistry_Each(t *testing.T) {
	r := newLinkRegistry()
	a, b, c := &fakeTracked{}, &fakeTracked{}, &fakeTracked{}
	r.add("AA", a)
	r.add("AA", b)
	r.add("BB", c)

	r.each(func(_ string, l trackedLink) {
		require.NoError(t, l.Close())
	})
	for _, l := range []*fakeTracked{a, b, c} {
		assert.Equal(t, int32(1), l.closed.Load())
	}
}

type fakeWriter struct {
	err  error
	data []byte
}

func (w *fakeWriter) WriteWithoutResponse(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.data = append([]byte(nil), p...)
	return len(p), nil
}

func TestWriteWithoutResponse(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, writeWithoutResponse(w, []byte{0x05, 0xC8, 0x00}))
	assert.Equal(t, []byte{0x05, 0xC8, 0x00}, w.data)

	cause := errors.New("not permitted")
	err := writeWithoutResponse(&fakeWriter{err: cause}, []byte{0x00})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to write characteristic")
}
