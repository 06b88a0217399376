// File: reactor/eventloop.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoop runs the wait/dispatch cycle for one goroutine pinned to one OS
// thread. It owns its Poller, a wake-up channel backed by an event counter, a
// periodic timer channel, the table of registered Channels, and a task queue
// that is the only entry point for other goroutines.

package reactor

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/pkg/errors"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/affinity"
	"github.com/momentics/hioload-tcp/internal/logging"
)

const (
	// DefaultMaxEvents is the readiness batch size when none is configured.
	DefaultMaxEvents = 1024
	// DefaultPollTimeout bounds one Wait call.
	DefaultPollTimeout = time.Second
	// DefaultTimerInterval is the period of the idle timer channel.
	DefaultTimerInterval = time.Second
)

const (
	stateCreated int32 = iota
	stateLooping
	stateStopped
)

// LoopConfig parameterizes NewEventLoop.
type LoopConfig struct {
	Name          string
	MaxEvents     int
	PollTimeout   time.Duration // negative waits forever
	TimerInterval time.Duration // zero or negative disables the timer channel
	PinCPU        bool          // pin the loop thread to CPU
	CPU           int
	Logger        *logging.ContextLogger
}

// eventCounter wakes a blocked Wait from any goroutine.
type eventCounter interface {
	Fd() int
	Notify() error
	Drain() error
	Close() error
}

// oneShotTimer fires once per Arm.
type oneShotTimer interface {
	Fd() int
	Arm(d time.Duration) error
	Drain() error
	Close() error
}

// EventLoop is created on any goroutine, then Run on the goroutine that will
// own it.
type EventLoop struct {
	name        string
	poller      Poller
	pollTimeout time.Duration
	pinCPU      bool
	cpu         int
	log         *logging.ContextLogger

	channels map[int]*Channel
	gen      uint32

	wake   eventCounter
	wakeCh *Channel

	timer         oneShotTimer
	timerCh       *Channel
	timerInterval time.Duration
	onTimer       func()
	onPollTimeout func(*EventLoop)

	mu          sync.Mutex
	tasks       *queue.Queue
	spare       *queue.Queue
	tasksClosed bool
	fdsClosed   bool

	state    atomic.Int32
	quit     atomic.Bool
	tid      atomic.Int64
	done     chan struct{}
	doneOnce sync.Once
	iter     atomic.Uint64
}

// NewEventLoop allocates the poller, the wake-up counter and the timer, and
// registers their channels. Nothing runs until Run.
func NewEventLoop(cfg LoopConfig) (*EventLoop, error) {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	poller, err := NewPoller(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	wake, err := newEventCounter()
	if err != nil {
		poller.Close()
		return nil, err
	}
	l := &EventLoop{
		name:          cfg.Name,
		poller:        poller,
		pollTimeout:   cfg.PollTimeout,
		pinCPU:        cfg.PinCPU,
		cpu:           cfg.CPU,
		log:           cfg.Logger,
		channels:      make(map[int]*Channel),
		wake:          wake,
		timerInterval: cfg.TimerInterval,
		tasks:         queue.New(),
		spare:         queue.New(),
		done:          make(chan struct{}),
	}
	l.wakeCh = NewChannel(l, wake.Fd())
	l.wakeCh.SetReadCallback(l.handleWakeup)
	l.wakeCh.EnableReading()

	if cfg.TimerInterval > 0 {
		timer, err := newOneShotTimer()
		if err != nil {
			l.Close()
			return nil, err
		}
		l.timer = timer
		l.timerCh = NewChannel(l, timer.Fd())
		l.timerCh.SetReadCallback(l.handleTimer)
		l.timerCh.EnableReading()
	}
	return l, nil
}

// Name returns the configured loop name.
func (l *EventLoop) Name() string { return l.name }

// SetTimerCallback installs the periodic tick handler. Call before Run.
func (l *EventLoop) SetTimerCallback(fn func()) { l.onTimer = fn }

// SetPollTimeoutCallback installs the handler for a Wait that returned no
// events. Call before Run.
func (l *EventLoop) SetPollTimeoutCallback(fn func(*EventLoop)) { l.onPollTimeout = fn }

// InLoop reports whether the caller runs on the goroutine executing Run.
// Run locks its goroutine to one OS thread, so no other goroutine can share
// that thread id.
func (l *EventLoop) InLoop() bool {
	tid := l.tid.Load()
	return tid != 0 && tid == currentThreadID()
}

// Running reports whether Run is executing its dispatch cycle.
func (l *EventLoop) Running() bool { return l.state.Load() == stateLooping }

// Iterations returns how many Wait calls have completed.
func (l *EventLoop) Iterations() uint64 { return l.iter.Load() }

// ChannelCount returns registered channels, including internal ones.
func (l *EventLoop) ChannelCount() int {
	l.assertInLoop("ChannelCount")
	return len(l.channels)
}

// Done is closed once Run has returned, or once Stop ran before Run.
func (l *EventLoop) Done() <-chan struct{} { return l.done }

// Run blocks dispatching events until Stop. Pending tasks are executed before
// it returns. A poller failure is an invariant violation and panics.
func (l *EventLoop) Run() {
	if !l.state.CompareAndSwap(stateCreated, stateLooping) {
		return
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	l.tid.Store(int64(currentThreadID()))
	defer l.finish()
	if l.pinCPU {
		if err := affinity.Pin(l.cpu); err != nil {
			l.log.WithContextFields(logging.LogFields{"loop": l.name, "cpu": l.cpu, "error": err}).Warn("cpu pinning failed")
		}
	}

	l.log.WithContextFields(logging.LogFields{"loop": l.name}).Debug("event loop started")
	l.armTimer()
	for !l.quit.Load() {
		ready, err := l.poller.Wait(l.pollTimeout)
		l.iter.Add(1)
		if err != nil {
			l.log.WithContextFields(logging.LogFields{"loop": l.name, "error": err}).Error("poller failed")
			panic(errors.Wrapf(err, "event loop %s", l.name))
		}
		if len(ready) == 0 {
			if l.onPollTimeout != nil {
				l.onPollTimeout(l)
			}
			continue
		}
		for _, r := range ready {
			ch, ok := l.channels[r.Fd]
			if !ok || ch.gen != r.Gen {
				continue
			}
			ch.HandleEvent(r.Events)
		}
	}
}

func (l *EventLoop) finish() {
	l.mu.Lock()
	l.tasksClosed = true
	l.mu.Unlock()
	l.runPendingTasks()
	l.tid.Store(0)
	l.state.Store(stateStopped)
	l.doneOnce.Do(func() { close(l.done) })
	l.log.WithContextFields(logging.LogFields{"loop": l.name}).Debug("event loop stopped")
}

// Stop asks the loop to exit and, unless called from the loop itself, waits
// until Run has returned. It is idempotent and safe from any goroutine.
func (l *EventLoop) Stop() {
	l.quit.Store(true)
	if l.state.CompareAndSwap(stateCreated, stateStopped) {
		l.mu.Lock()
		l.tasksClosed = true
		l.mu.Unlock()
		l.doneOnce.Do(func() { close(l.done) })
		return
	}
	if l.InLoop() {
		return
	}
	l.wakeup()
	<-l.done
}

// Close stops the loop if needed and releases the poller, wake-up and timer
// descriptors. Registered user channels are not closed. Must not be called
// from the loop goroutine.
func (l *EventLoop) Close() error {
	l.Stop()
	l.mu.Lock()
	if l.fdsClosed {
		l.mu.Unlock()
		return nil
	}
	l.fdsClosed = true
	l.mu.Unlock()
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if l.timer != nil {
		keep(l.timer.Close())
	}
	keep(l.wake.Close())
	keep(l.poller.Close())
	return first
}

// PushTask queues task for execution on the loop goroutine and wakes the
// loop. Tasks run in push order. It fails once the loop has stopped.
func (l *EventLoop) PushTask(task func()) error {
	l.mu.Lock()
	if l.tasksClosed {
		l.mu.Unlock()
		return api.ErrLoopStopped
	}
	l.tasks.Add(task)
	l.mu.Unlock()
	l.wakeup()
	return nil
}

// RunInLoop executes task immediately when called on the loop goroutine and
// queues it otherwise.
func (l *EventLoop) RunInLoop(task func()) error {
	if l.InLoop() {
		task()
		return nil
	}
	return l.PushTask(task)
}

// PendingTasks returns the number of queued tasks.
func (l *EventLoop) PendingTasks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Length()
}

// wakeup holds the mutex so Close cannot release the counter mid-write.
func (l *EventLoop) wakeup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fdsClosed {
		return
	}
	if err := l.wake.Notify(); err != nil {
		l.log.WithContextFields(logging.LogFields{"loop": l.name, "error": err}).Warn("wakeup failed")
	}
}

func (l *EventLoop) handleWakeup() {
	if err := l.wake.Drain(); err != nil {
		l.log.WithContextFields(logging.LogFields{"loop": l.name, "error": err}).Warn("wakeup drain failed")
	}
	l.runPendingTasks()
}

// runPendingTasks swaps the queue out under the lock and runs it unlocked,
// so tasks may push further tasks without deadlocking.
func (l *EventLoop) runPendingTasks() {
	l.mu.Lock()
	pending := l.tasks
	l.tasks = l.spare
	l.mu.Unlock()

	for pending.Length() > 0 {
		pending.Remove().(func())()
	}

	l.mu.Lock()
	l.spare = pending
	l.mu.Unlock()
}

func (l *EventLoop) armTimer() {
	if l.timer == nil {
		return
	}
	if err := l.timer.Arm(l.timerInterval); err != nil {
		l.log.WithContextFields(logging.LogFields{"loop": l.name, "error": err}).Error("timer arm failed")
		panic(errors.Wrapf(err, "event loop %s", l.name))
	}
}

func (l *EventLoop) handleTimer() {
	if err := l.timer.Drain(); err != nil {
		l.log.WithContextFields(logging.LogFields{"loop": l.name, "error": err}).Warn("timer drain failed")
	}
	if l.onTimer != nil {
		l.onTimer()
	}
	l.armTimer()
}

func (l *EventLoop) assertInLoop(op string) {
	if l.state.Load() == stateLooping && !l.InLoop() {
		panic(errors.Errorf("reactor: %s on loop %s called from a foreign goroutine", op, l.name))
	}
}

// updateChannel adds or modifies ch. Registration failures are invariant
// violations and panic.
func (l *EventLoop) updateChannel(ch *Channel) {
	l.assertInLoop("updateChannel")
	var err error
	if !ch.registered {
		l.gen++
		ch.gen = l.gen
		err = l.poller.Add(ch.fd, ch.interest, ch.gen)
		if err == nil {
			ch.registered = true
			l.channels[ch.fd] = ch
		}
	} else {
		err = l.poller.Modify(ch.fd, ch.interest, ch.gen)
	}
	if err != nil {
		l.log.WithContextFields(logging.LogFields{"loop": l.name, "fd": ch.fd, "error": err}).Error("channel update failed")
		panic(err)
	}
}

func (l *EventLoop) removeChannel(ch *Channel) {
	l.assertInLoop("removeChannel")
	if !ch.registered {
		return
	}
	ch.registered = false
	if cur, ok := l.channels[ch.fd]; ok && cur == ch {
		delete(l.channels, ch.fd)
	}
	if err := l.poller.Remove(ch.fd); err != nil {
		l.log.WithContextFields(logging.LogFields{"loop": l.name, "fd": ch.fd, "error": err}).Error("channel remove failed")
		panic(err)
	}
}
