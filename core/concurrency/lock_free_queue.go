// File: core/concurrency/lock_free_queue.go
// Package concurrency provides the business worker pool and its task queue.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded MPMC queue after Dmitry Vyukov's sequence-numbered ring. Producers
// never block: a full queue rejects the item.

package concurrency

import "sync/atomic"

const cacheLinePad = 64

type slot[T any] struct {
	seq  atomic.Uint64
	item T
}

// LockFreeQueue is a fixed capacity MPMC FIFO.
type LockFreeQueue[T any] struct {
	head  atomic.Uint64
	_     [cacheLinePad]byte
	tail  atomic.Uint64
	_     [cacheLinePad]byte
	mask  uint64
	slots []slot[T]
}

// NewLockFreeQueue rounds capacity up to a power of two (minimum 2).
func NewLockFreeQueue[T any](capacity int) *LockFreeQueue[T] {
	size := 2
	for size < capacity {
		size <<= 1
	}
	q := &LockFreeQueue[T]{
		mask:  uint64(size - 1),
		slots: make([]slot[T], size),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// Cap returns the real capacity after rounding.
func (q *LockFreeQueue[T]) Cap() int { return len(q.slots) }

// Len is a racy estimate of queued items.
func (q *LockFreeQueue[T]) Len() int {
	n := int64(q.tail.Load()) - int64(q.head.Load())
	if n < 0 {
		return 0
	}
	return int(n)
}

// Enqueue returns false when the queue is full.
func (q *LockFreeQueue[T]) Enqueue(item T) bool {
	for {
		pos := q.tail.Load()
		s := &q.slots[pos&q.mask]
		switch d := int64(s.seq.Load()) - int64(pos); {
		case d == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				s.item = item
				s.seq.Store(pos + 1)
				return true
			}
		case d < 0:
			return false
		}
	}
}

// Dequeue returns ok=false when no published item is available.
func (q *LockFreeQueue[T]) Dequeue() (item T, ok bool) {
	for {
		pos := q.head.Load()
		s := &q.slots[pos&q.mask]
		switch d := int64(s.seq.Load()) - int64(pos+1); {
		case d == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				item = s.item
				var zero T
				s.item = zero
				s.seq.Store(pos + q.mask + 1)
				return item, true
			}
		case d < 0:
			return item, false
		}
	}
}
