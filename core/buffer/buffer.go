// File: core/buffer/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Buffer is the per-connection byte accumulator. It is owned by exactly one
// event loop goroutine and performs no locking.

package buffer

import (
	"errors"
	"io"
	"syscall"
)

const (
	// InitialChunk is the first growth step of an empty buffer.
	InitialChunk = 4 * 1024
	// growThreshold triggers growth before a read when free space drops below it.
	growThreshold = 1024
	maxChunk      = 1 << 20
)

// ReadFunc performs one non-blocking read, returning raw errno errors.
type ReadFunc func(p []byte) (int, error)

// WriteFunc performs one non-blocking write, returning raw errno errors.
type WriteFunc func(p []byte) (int, error)

// Buffer holds unread bytes in data[off:].
type Buffer struct {
	data   []byte
	off    int
	chunk  int
	framer Framer
}

// New creates an empty buffer bound to framer. A nil framer means raw mode.
func New(framer Framer) *Buffer {
	if framer == nil {
		framer = rawFramer{}
	}
	return &Buffer{chunk: InitialChunk, framer: framer}
}

// Framer returns the buffer's framing strategy.
func (b *Buffer) Framer() Framer { return b.framer }

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return len(b.data) - b.off }

// Cap returns the current allocation size.
func (b *Buffer) Cap() int { return cap(b.data) }

// Bytes returns the unread bytes. The slice is valid until the next mutation.
func (b *Buffer) Bytes() []byte { return b.data[b.off:] }

// Append copies p to the tail.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// AppendMessage encodes payload with the buffer's framer and appends it.
func (b *Buffer) AppendMessage(payload []byte) {
	b.data = b.framer.Encode(b.data, payload)
}

// Consume drops n bytes from the front.
func (b *Buffer) Consume(n int) {
	if n >= b.Len() {
		b.Reset()
		return
	}
	b.off += n
}

// Reset empties the buffer but keeps its allocation.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.off = 0
}

// Oversized reports whether the next message exceeds max payload bytes.
// A non-positive max disables the check.
func (b *Buffer) Oversized(max int) bool {
	return max > 0 && b.framer.Oversized(b.Bytes(), max)
}

// PickMessage removes and returns exactly one complete message, or ok=false.
// The returned slice is a copy owned by the caller.
func (b *Buffer) PickMessage() ([]byte, bool) {
	msg, n, ok := b.framer.Next(b.Bytes())
	if !ok {
		return nil, false
	}
	out := make([]byte, len(msg))
	copy(out, msg)
	b.Consume(n)
	return out, true
}

// reserve makes sure at least growThreshold bytes are free at the tail.
func (b *Buffer) reserve() {
	if cap(b.data)-len(b.data) >= growThreshold {
		return
	}
	if b.off > 0 {
		n := copy(b.data, b.data[b.off:])
		b.data = b.data[:n]
		b.off = 0
		if cap(b.data)-len(b.data) >= growThreshold {
			return
		}
	}
	grown := make([]byte, len(b.data), cap(b.data)+b.chunk)
	copy(grown, b.data)
	b.data = grown
	if b.chunk < maxChunk {
		b.chunk *= 2
	}
}

// ReadFrom drains read until it would block. It returns the number of bytes
// appended and io.EOF when the peer closed. EINTR is retried and EAGAIN ends
// the drain without error; any other error is returned as is.
func (b *Buffer) ReadFrom(read ReadFunc) (int, error) {
	total := 0
	for {
		b.reserve()
		tail := b.data[len(b.data):cap(b.data)]
		n, err := read(tail)
		if n > 0 {
			b.data = b.data[:len(b.data)+n]
			total += n
		}
		switch {
		case err == nil && n == 0:
			return total, io.EOF
		case err == nil:
		case errors.Is(err, syscall.EINTR):
		case errors.Is(err, syscall.EAGAIN):
			return total, nil
		default:
			return total, err
		}
	}
}

// WriteTo issues a single write of the unread bytes and drops what the
// kernel accepted. EAGAIN is reported as zero progress with no error.
func (b *Buffer) WriteTo(write WriteFunc) (int, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	for {
		n, err := write(b.Bytes())
		if n < 0 {
			n = 0
		}
		b.Consume(n)
		switch {
		case err == nil, errors.Is(err, syscall.EAGAIN):
			return n, nil
		case errors.Is(err, syscall.EINTR) && n == 0:
		case errors.Is(err, syscall.EINTR):
			return n, nil
		default:
			return n, err
		}
	}
}
