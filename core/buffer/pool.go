// File: core/buffer/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import "sync"

// MaxPooledCap bounds the allocation a recycled buffer may keep. Larger
// buffers are left to the garbage collector so one burst does not pin memory.
const MaxPooledCap = 64 * 1024

// Pool recycles buffers bound to one framer across connections.
type Pool struct {
	framer Framer
	pool   sync.Pool
}

// NewPool creates a pool whose buffers use framer.
func NewPool(framer Framer) *Pool {
	p := &Pool{framer: framer}
	p.pool.New = func() any { return New(framer) }
	return p
}

// Get returns an empty buffer.
func (p *Pool) Get() *Buffer {
	return p.pool.Get().(*Buffer)
}

// Put resets b and makes it available again. The caller must not touch b
// afterwards.
func (p *Pool) Put(b *Buffer) {
	if b == nil || b.framer != p.framer || b.Cap() > MaxPooledCap {
		return
	}
	b.Reset()
	b.chunk = InitialChunk
	p.pool.Put(b)
}
