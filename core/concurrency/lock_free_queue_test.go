package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockFreeQueueFIFO(t *testing.T) {
	q := NewLockFreeQueue[int](3)
	require.Equal(t, 4, q.Cap())

	for i := 0; i < 4; i++ {
		require.True(t, q.Enqueue(i))
	}
	assert.False(t, q.Enqueue(99), "full queue must reject")
	assert.Equal(t, 4, q.Len())

	for i := 0; i < 4; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestLockFreeQueueMPMC(t *testing.T) {
	q := NewLockFreeQueue[int](1024)
	const producers, consumers, perProducer = 8, 8, 10000
	total := int64(producers * perProducer)

	var sent, received, count int64
	var pwg, cwg sync.WaitGroup

	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(pid int) {
			defer pwg.Done()
			for i := 0; i < perProducer; i++ {
				v := pid*perProducer + i + 1
				for !q.Enqueue(v) {
					runtime.Gosched()
				}
				atomic.AddInt64(&sent, int64(v))
			}
		}(p)
	}
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for atomic.LoadInt64(&count) < total {
				if v, ok := q.Dequeue(); ok {
					atomic.AddInt64(&received, int64(v))
					atomic.AddInt64(&count, 1)
				} else {
					runtime.Gosched()
				}
			}
		}()
	}
	pwg.Wait()

	done := make(chan struct{})
	go func() {
		cwg.Wait()
		close(done)
	}()
	select {
	case <-done:
		assert.Equal(t, sent, received, "checksum mismatch")
	case <-time.After(10 * time.Second):
		t.Fatalf("timeout: received %d/%d", atomic.LoadInt64(&count), total)
	}
}
