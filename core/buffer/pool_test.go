package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-tcp/api"
)

func TestPoolReturnsEmptyBuffers(t *testing.T) {
	f := NewFramer(api.FramingLengthPrefixed, api.DefaultDelimiter)
	p := NewPool(f)

	b := p.Get()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, f, b.Framer())

	b.AppendMessage([]byte("stale"))
	p.Put(b)

	again := p.Get()
	assert.Equal(t, 0, again.Len(), "recycled buffers carry no bytes")
	_, ok := again.PickMessage()
	assert.False(t, ok)
}

func TestPoolDropsOversizedAndForeignBuffers(t *testing.T) {
	f := NewFramer(api.FramingRaw, api.DefaultDelimiter)
	p := NewPool(f)

	big := New(f)
	big.Append(make([]byte, MaxPooledCap+1))
	assert.NotPanics(t, func() { p.Put(big) })
	assert.NotPanics(t, func() { p.Put(nil) })

	other := New(NewFramer(api.FramingDelimiter, api.DefaultDelimiter))
	p.Put(other)
	got := p.Get()
	assert.Equal(t, f, got.Framer())
}
