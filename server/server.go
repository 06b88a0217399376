// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server owns the accept loop, N worker loops running on an I/O pool, an
// optional business pool for OnMessage, and the fd -> Connection registry.
// The registry lock is held only for map mutation, never across a callback.

package server

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/core/buffer"
	"github.com/momentics/hioload-tcp/core/concurrency"
	"github.com/momentics/hioload-tcp/internal/affinity"
	"github.com/momentics/hioload-tcp/internal/logging"
	"github.com/momentics/hioload-tcp/reactor"
	"github.com/momentics/hioload-tcp/transport"
)

const (
	stateCreated int32 = iota
	stateRunning
	stateStopped
)

// Server is the multi-loop TCP server.
type Server struct {
	cfg      *Config
	log      *logging.ContextLogger
	metrics  *control.Metrics
	probes   *control.DebugProbes
	settings *control.ConfigStore
	framer   buffer.Framer
	bufs     *buffer.Pool

	idleTimeout atomic.Int64

	mainLoop *reactor.EventLoop
	acceptor *Acceptor
	workers  []*worker
	ioPool   *concurrency.WorkerPool
	msgPool  api.ThreadPool

	mu    sync.Mutex
	conns map[int]*Connection

	state    atomic.Int32
	stopOnce sync.Once
	done     chan struct{}

	onNewConnection func(*Connection)
	onClose         func(*Connection)
	onError         func(*Connection, error)
	onMessage       func(*Connection, []byte)
	onSendComplete  func(*Connection)
	onIdleTimeout   func(int)
	onPollTimeout   func(*reactor.EventLoop)
}

// New binds the listening socket and starts the worker loops. The accept
// loop runs once Start is called. A bind or listen failure is returned.
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addr, err := transport.ParseAddress(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		log:      logging.Wrap(cfg.Logger),
		metrics:  control.NewMetrics(cfg.MetricsNamespace, cfg.MetricsRegisterer),
		probes:   control.NewDebugProbes(),
		settings: control.NewConfigStore(),
		framer:   buffer.NewFramer(cfg.Framing, cfg.Delimiter),
		conns:    make(map[int]*Connection),
		done:     make(chan struct{}),
	}
	s.bufs = buffer.NewPool(s.framer)
	for _, o := range opts {
		o(s)
	}
	s.idleTimeout.Store(int64(cfg.IdleTimeout))
	s.settings.OnReload(s.applySettings)

	if err := s.build(addr); err != nil {
		s.release()
		s.stopPools()
		return nil, err
	}
	s.registerProbes()

	for _, w := range s.workers {
		if !s.ioPool.AddTask(s.runWorker(w)) {
			s.release()
			s.stopPools()
			return nil, errors.Wrap(api.ErrPoolStopped, "start worker loop")
		}
	}
	s.log.WithContextFields(logging.LogFields{
		"addr":    s.acceptor.Addr().String(),
		"loops":   len(s.workers),
		"framing": cfg.Framing.String(),
	}).Info("server listening")
	return s, nil
}

func (s *Server) build(addr transport.Address) error {
	var err error
	s.mainLoop, err = reactor.NewEventLoop(reactor.LoopConfig{
		Name:        "accept",
		MaxEvents:   s.cfg.MainMaxEvents,
		PollTimeout: s.cfg.AcceptPollTimeout,
		Logger:      s.log,
	})
	if err != nil {
		return err
	}
	if s.onPollTimeout != nil {
		s.mainLoop.SetPollTimeoutCallback(s.onPollTimeout)
	}

	s.acceptor, err = NewAcceptor(s.mainLoop, addr, s.cfg.Backlog, s.log, s.metrics)
	if err != nil {
		return err
	}
	s.acceptor.SetNewConnectionCallback(s.newConn)

	for i := 0; i < s.cfg.WorkerLoops; i++ {
		loop, err := reactor.NewEventLoop(reactor.LoopConfig{
			Name:          "worker-" + strconv.Itoa(i),
			MaxEvents:     s.cfg.WorkerMaxEvents,
			PollTimeout:   s.cfg.PollTimeout,
			TimerInterval: s.cfg.TimerInterval,
			PinCPU:        s.cfg.PinLoops,
			CPU:           affinity.CPUFor(i),
			Logger:        s.log,
		})
		if err != nil {
			return err
		}
		w := &worker{id: i, loop: loop, conns: make(map[int]*Connection), srv: s}
		loop.SetTimerCallback(w.scanIdle)
		if s.onPollTimeout != nil {
			loop.SetPollTimeoutCallback(s.onPollTimeout)
		}
		s.workers = append(s.workers, w)
	}

	s.ioPool, err = concurrency.NewWorkerPool(s.cfg.WorkerLoops, s.cfg.WorkerLoops, s.log)
	if err != nil {
		return err
	}
	if s.msgPool == nil && s.cfg.MessageWorkers > 0 {
		s.msgPool, err = concurrency.NewWorkerPool(s.cfg.MessageWorkers, s.cfg.MessageQueueSize, s.log)
		if err != nil {
			return err
		}
	}
	return nil
}

// runWorker wraps a worker loop for the I/O pool. A loop panic is an
// invariant violation and ends the process.
func (s *Server) runWorker(w *worker) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.WithContextFields(logging.LogFields{"loop": w.loop.Name(), "panic": r}).Fatal("worker loop crashed")
			}
		}()
		w.loop.Run()
	}
}

// Start runs the accept loop on the calling goroutine until Stop.
func (s *Server) Start() error {
	if !s.state.CompareAndSwap(stateCreated, stateRunning) {
		if s.state.Load() == stateStopped {
			return api.ErrServerNotRunning
		}
		return api.ErrAlreadyRunning
	}
	s.mainLoop.Run()
	return nil
}

// Stop shuts down the accept loop, then every worker loop, then the pools,
// each step waiting for the previous to finish. Remaining connections are
// closed without callbacks. Safe to call more than once.
//
// Called from a server callback or a business pool task, Stop cannot wait
// for the goroutine it runs on. It then starts the shutdown in the
// background and returns at once; Done reports completion.
func (s *Server) Stop() {
	if s.calledFromServer() {
		go s.shutdown()
		return
	}
	s.shutdown()
}

// Done is closed once Stop has finished.
func (s *Server) Done() <-chan struct{} { return s.done }

// calledFromServer reports whether the caller runs on one of the server's
// loops or pool workers.
func (s *Server) calledFromServer() bool {
	if s.mainLoop != nil && s.mainLoop.InLoop() {
		return true
	}
	for _, w := range s.workers {
		if w.loop.InLoop() {
			return true
		}
	}
	if s.ioPool != nil && s.ioPool.InWorker() {
		return true
	}
	if p, ok := s.msgPool.(interface{ InWorker() bool }); ok && p.InWorker() {
		return true
	}
	return false
}

func (s *Server) shutdown() {
	s.stopOnce.Do(func() {
		defer close(s.done)
		s.state.Store(stateStopped)
		s.mainLoop.Stop()
		for _, w := range s.workers {
			w.loop.Stop()
		}
		s.stopPools()
		s.closeRemaining()
		s.release()
		s.log.WithContext().Info("server stopped")
	})
}

func (s *Server) stopPools() {
	if s.ioPool != nil {
		s.ioPool.Stop()
	}
	if s.msgPool != nil {
		s.msgPool.Stop()
	}
}

// release stops and frees the loops and the listening socket.
func (s *Server) release() {
	if s.acceptor != nil {
		s.acceptor.Close()
	}
	if s.mainLoop != nil {
		s.mainLoop.Close()
	}
	for _, w := range s.workers {
		w.loop.Close()
	}
}

func (s *Server) closeRemaining() {
	s.mu.Lock()
	remaining := s.conns
	s.conns = make(map[int]*Connection)
	s.mu.Unlock()

	for _, c := range remaining {
		if c.disconnected.CompareAndSwap(false, true) {
			c.sock.Close()
			s.metrics.Active.Dec()
			s.metrics.Closed.WithLabelValues(control.ReasonShutdown).Inc()
		}
	}
}

// newConn runs on the accept loop. The registry entry exists before the
// connection is visible to its worker loop.
func (s *Server) newConn(sock *transport.Socket, peer transport.Address) {
	w := s.workers[sock.Fd()%len(s.workers)]
	c := newConnection(s, w, sock, peer)

	s.mu.Lock()
	s.conns[c.fd] = c
	s.mu.Unlock()
	s.metrics.Accepted.Inc()
	s.metrics.Active.Inc()

	if err := w.loop.PushTask(func() { w.attach(c) }); err != nil {
		s.unregister(c)
		c.disconnected.Store(true)
		sock.Close()
		s.metrics.Active.Dec()
		return
	}
	s.log.WithContextFields(logging.LogFields{"fd": c.fd, "peer": peer.String(), "loop": w.id}).Debug("connection accepted")
}

func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	if cur, ok := s.conns[c.fd]; ok && cur == c {
		delete(s.conns, c.fd)
	}
	s.mu.Unlock()
}

// evict tears c down on its loop goroutine: unregister the channel, drop it
// from the loop set and the registry, run exactly one callback, close the
// descriptor last. A second call is a no-op.
func (s *Server) evict(c *Connection, reason string, cause error) {
	if !c.disconnected.CompareAndSwap(false, true) {
		return
	}
	c.ch.Remove()
	c.w.detach(c)
	s.unregister(c)
	s.metrics.Active.Dec()
	s.metrics.Closed.WithLabelValues(reason).Inc()

	fields := logging.LogFields{"fd": c.fd, "peer": c.peer.String(), "reason": reason}
	if cause != nil {
		fields["error"] = cause
	}
	s.log.WithContextFields(fields).Debug("connection closed")

	switch reason {
	case control.ReasonPeer, control.ReasonLocal:
		if s.onClose != nil {
			s.onClose(c)
		}
	case control.ReasonError:
		if s.onError != nil {
			s.onError(c, cause)
		}
	case control.ReasonIdle:
		if s.onIdleTimeout != nil {
			s.onIdleTimeout(c.fd)
		}
	}
	c.sock.Close()
	s.bufs.Put(c.in)
	s.bufs.Put(c.out)
	c.in, c.out = nil, nil
}

// applySettings also guards updates made directly on the settings store.
func (s *Server) applySettings(changed map[string]any) {
	v, ok := changed[control.KeyIdleTimeout]
	if !ok {
		return
	}
	d, ok := v.(time.Duration)
	if !ok {
		return
	}
	if err := s.checkIdleTimeout(d); err != nil {
		s.log.WithContextFields(logging.LogFields{"idle_timeout": d.String(), "error": err}).Warn("idle timeout update ignored")
		return
	}
	s.idleTimeout.Store(int64(d))
	s.log.WithContextFields(logging.LogFields{"idle_timeout": d.String()}).Info("idle timeout updated")
}

func (s *Server) registerProbes() {
	s.probes.RegisterProbe("connections", func() any { return s.ConnectionCount() })
	s.probes.RegisterProbe("worker_loops", func() any { return len(s.workers) })
	s.probes.RegisterProbe("idle_timeout", func() any { return s.IdleTimeout().String() })
	s.probes.RegisterProbe("loop_iterations", func() any {
		out := make([]uint64, len(s.workers))
		for i, w := range s.workers {
			out[i] = w.loop.Iterations()
		}
		return out
	})
	s.probes.RegisterProbe("message_tasks", func() any {
		if p, ok := s.msgPool.(*concurrency.WorkerPool); ok {
			return p.TaskCount()
		}
		return 0
	})
}

// Addr returns the bound listen address.
func (s *Server) Addr() transport.Address { return s.acceptor.Addr() }

// Connection looks up a live connection by descriptor.
func (s *Server) Connection(fd int) (*Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[fd]
	return c, ok
}

// ConnectionCount returns the registry size.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WorkerLoad asks each worker loop how many connections it owns. A loop that
// does not answer within timeout reports -1.
func (s *Server) WorkerLoad(timeout time.Duration) []int {
	out := make([]int, len(s.workers))
	answers := make([]chan int, len(s.workers))
	for i, w := range s.workers {
		w := w
		ch := make(chan int, 1)
		answers[i] = ch
		if err := w.loop.PushTask(func() { ch <- len(w.conns) }); err != nil {
			close(ch)
		}
	}
	deadline := time.After(timeout)
	for i, ch := range answers {
		select {
		case n, ok := <-ch:
			if !ok {
				n = -1
			}
			out[i] = n
		case <-deadline:
			out[i] = -1
		}
	}
	return out
}

// IdleTimeout returns the current eviction threshold.
func (s *Server) IdleTimeout() time.Duration { return time.Duration(s.idleTimeout.Load()) }

// SetIdleTimeout changes the eviction threshold at runtime. It is rejected
// when the worker loops run without a timer, since nothing would enforce it.
func (s *Server) SetIdleTimeout(d time.Duration) error {
	if err := s.checkIdleTimeout(d); err != nil {
		return err
	}
	s.settings.SetConfig(map[string]any{control.KeyIdleTimeout: d})
	return nil
}

func (s *Server) checkIdleTimeout(d time.Duration) error {
	switch {
	case d < 0:
		return errors.Wrapf(api.ErrInvalidConfig, "idle timeout %s", d)
	case d > 0 && s.cfg.TimerInterval <= 0:
		return errors.Wrap(api.ErrInvalidConfig, "idle timeout needs a timer interval")
	}
	return nil
}

// Settings exposes the runtime settings store.
func (s *Server) Settings() *control.ConfigStore { return s.settings }

// Metrics exposes the Prometheus collectors.
func (s *Server) Metrics() *control.Metrics { return s.metrics }

// Stats returns a snapshot of the debug probes.
func (s *Server) Stats() map[string]any { return s.probes.DumpState() }

// Logger returns the server's logger.
func (s *Server) Logger() *logging.ContextLogger { return s.log }
