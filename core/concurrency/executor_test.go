package concurrency

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	p, err := NewWorkerPool(4, 128, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, p.WorkerCount())

	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		for !p.AddTask(func() { n.Add(1); wg.Done() }) {
			time.Sleep(time.Millisecond)
		}
	}
	wg.Wait()
	p.Stop()
	assert.EqualValues(t, 1000, n.Load())
	assert.Equal(t, 0, p.TaskCount())
}

func TestWorkerPoolRejectsWhenFull(t *testing.T) {
	p, err := NewWorkerPool(1, 2, nil)
	require.NoError(t, err)

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.AddTask(func() { close(started); <-block }))
	<-started

	assert.True(t, p.AddTask(func() {}))
	assert.True(t, p.AddTask(func() {}))
	assert.False(t, p.AddTask(func() {}), "third queued task exceeds capacity")

	close(block)
	p.Stop()
}

func TestWorkerPoolStopDrainsAndRejects(t *testing.T) {
	p, err := NewWorkerPool(2, 64, nil)
	require.NoError(t, err)

	var n atomic.Int64
	for i := 0; i < 32; i++ {
		require.True(t, p.AddTask(func() {
			time.Sleep(time.Millisecond)
			n.Add(1)
		}))
	}
	p.Stop()
	assert.EqualValues(t, 32, n.Load(), "queued tasks run before Stop returns")
	assert.False(t, p.AddTask(func() {}))

	// Second Stop is a no-op.
	p.Stop()
}

func TestWorkerPoolSurvivesPanic(t *testing.T) {
	p, err := NewWorkerPool(1, 8, nil)
	require.NoError(t, err)
	defer p.Stop()

	done := make(chan struct{})
	require.True(t, p.AddTask(func() { panic("boom") }))
	require.True(t, p.AddTask(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestNewWorkerPoolValidates(t *testing.T) {
	_, err := NewWorkerPool(0, 8, nil)
	assert.True(t, errors.Is(err, ErrInvalidWorkerCount))
}

func TestWorkerPoolInWorker(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("thread ids are linux only")
	}
	p, err := NewWorkerPool(2, 16, nil)
	require.NoError(t, err)
	defer p.Stop()

	assert.False(t, p.InWorker(), "test goroutine is not a worker")

	other, err := NewWorkerPool(1, 16, nil)
	require.NoError(t, err)
	defer other.Stop()

	inside := make(chan [2]bool, 1)
	require.True(t, p.AddTask(func() { inside <- [2]bool{p.InWorker(), other.InWorker()} }))
	select {
	case got := <-inside:
		assert.True(t, got[0], "task runs on a worker of its pool")
		assert.False(t, got[1], "and not on a worker of another pool")
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
}
