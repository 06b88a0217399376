// File: core/concurrency/executor.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkerPool runs business callbacks off the I/O loops. It is a fixed set of
// goroutines fed by one bounded lock-free queue; a token channel parks idle
// workers so they do not spin.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/affinity"
	"github.com/momentics/hioload-tcp/internal/logging"
)

// Compile-time interface check.
var _ api.ThreadPool = (*WorkerPool)(nil)

// DefaultQueueSize is used when NewWorkerPool gets a non-positive size.
const DefaultQueueSize = 4096

// WorkerPool executes tasks on a fixed number of goroutines. Tasks are
// rejected, never blocked on, when the queue is full.
type WorkerPool struct {
	queue   *LockFreeQueue[func()]
	tokens  chan struct{}
	stopCh  chan struct{}
	stopMu  sync.RWMutex
	stopped atomic.Bool
	pending atomic.Int64
	workers int
	wg      sync.WaitGroup
	log     *logging.ContextLogger

	// threads holds the OS thread ids of the worker goroutines, which are
	// locked to their threads for their whole life.
	threads sync.Map
}

// NewWorkerPool starts workers goroutines sharing a queue of queueSize slots.
func NewWorkerPool(workers, queueSize int, log *logging.ContextLogger) (*WorkerPool, error) {
	if workers <= 0 {
		return nil, errors.Wrapf(ErrInvalidWorkerCount, "%d", workers)
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = logging.Default()
	}
	q := NewLockFreeQueue[func()](queueSize)
	p := &WorkerPool{
		queue:   q,
		tokens:  make(chan struct{}, q.Cap()),
		stopCh:  make(chan struct{}),
		workers: workers,
		log:     log,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run(i)
	}
	return p, nil
}

// AddTask enqueues task. It returns false when the pool is stopped or full.
func (p *WorkerPool) AddTask(task func()) bool {
	if task == nil {
		return false
	}
	p.stopMu.RLock()
	defer p.stopMu.RUnlock()
	if p.stopped.Load() {
		return false
	}
	if !p.queue.Enqueue(task) {
		return false
	}
	p.pending.Add(1)
	// Outstanding tokens never exceed queued items, so this cannot block.
	p.tokens <- struct{}{}
	return true
}

// Stop rejects new tasks, lets workers finish what is queued and waits for
// them to exit. Safe to call more than once.
func (p *WorkerPool) Stop() {
	p.stopMu.Lock()
	if p.stopped.CompareAndSwap(false, true) {
		close(p.stopCh)
	}
	p.stopMu.Unlock()
	p.wg.Wait()
}

// WorkerCount returns the number of worker goroutines.
func (p *WorkerPool) WorkerCount() int { return p.workers }

// TaskCount returns tasks accepted but not yet finished.
func (p *WorkerPool) TaskCount() int { return int(p.pending.Load()) }

// InWorker reports whether the caller is one of the pool's worker
// goroutines. Stop must not be called from there: it would wait for itself.
func (p *WorkerPool) InWorker() bool {
	tid := affinity.ThreadID()
	if tid == 0 {
		return false
	}
	_, ok := p.threads.Load(tid)
	return ok
}

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if tid := affinity.ThreadID(); tid != 0 {
		p.threads.Store(tid, id)
		defer p.threads.Delete(tid)
	}
	for {
		select {
		case <-p.tokens:
			p.next(id)
		case <-p.stopCh:
			p.drain(id)
			return
		}
	}
}

// next runs one task. A token guarantees an item was published, but a
// slower producer ahead of it in the ring can hide it briefly.
func (p *WorkerPool) next(id int) {
	for {
		if task, ok := p.queue.Dequeue(); ok {
			p.execute(id, task)
			return
		}
		runtime.Gosched()
	}
}

func (p *WorkerPool) drain(id int) {
	for {
		select {
		case <-p.tokens:
			p.next(id)
		default:
			return
		}
	}
}

func (p *WorkerPool) execute(id int, task func()) {
	defer func() {
		p.pending.Add(-1)
		if r := recover(); r != nil {
			p.log.WithContextFields(logging.LogFields{"worker": id, "panic": r}).Error("task panicked")
		}
	}()
	task()
}
