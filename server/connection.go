// File: server/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection is one accepted client pinned for life to one worker loop. Its
// buffers and channel are touched only on that loop's goroutine; Send from
// elsewhere is marshalled through the loop's task queue.

package server

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/core/buffer"
	"github.com/momentics/hioload-tcp/internal/logging"
	"github.com/momentics/hioload-tcp/reactor"
	"github.com/momentics/hioload-tcp/transport"
)

// Connection is handed to application callbacks. Methods are safe from any
// goroutine unless noted.
type Connection struct {
	srv    *Server
	w      *worker
	sock   *transport.Socket
	ch     *reactor.Channel
	fd     int
	peer   transport.Address
	framer buffer.Framer

	in  *buffer.Buffer
	out *buffer.Buffer

	lastActivity atomic.Int64
	disconnected atomic.Bool

	// inbox serializes offloaded messages so one connection never has two
	// OnMessage calls in flight.
	inboxMu  sync.Mutex
	inbox    *queue.Queue
	draining bool

	ctx atomic.Value
}

func newConnection(srv *Server, w *worker, sock *transport.Socket, peer transport.Address) *Connection {
	c := &Connection{
		srv:    srv,
		w:      w,
		sock:   sock,
		fd:     sock.Fd(),
		peer:   peer,
		framer: srv.framer,
		in:     srv.bufs.Get(),
		out:    srv.bufs.Get(),
		inbox:  queue.New(),
	}
	c.ch = reactor.NewChannel(w.loop, c.fd)
	c.touch()
	return c
}

// Fd returns the client descriptor. It stays the connection's identity after
// close, but the number may then be reused by a newer connection.
func (c *Connection) Fd() int { return c.fd }

// PeerAddr returns the remote address.
func (c *Connection) PeerAddr() transport.Address { return c.peer }

// Loop returns the owning worker loop.
func (c *Connection) Loop() *reactor.EventLoop { return c.w.loop }

// Connected reports whether teardown has not started.
func (c *Connection) Connected() bool { return !c.disconnected.Load() }

// LastActivity is the time of the last framed message, or of accept.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// SetContext attaches an application value.
func (c *Connection) SetContext(v any) { c.ctx.Store(&v) }

// Context returns the value set by SetContext, or nil.
func (c *Connection) Context() any {
	if p, ok := c.ctx.Load().(*any); ok {
		return *p
	}
	return nil
}

func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Send frames msg with the server's framing mode and queues it for writing.
// Calls from one goroutine reach the wire in call order.
func (c *Connection) Send(msg []byte) error {
	if c.disconnected.Load() {
		return api.ErrConnectionClosed
	}
	if c.w.loop.InLoop() {
		c.out.AppendMessage(msg)
		c.startWriting()
		return nil
	}
	wire := c.framer.Encode(nil, msg)
	return c.w.loop.PushTask(func() {
		if c.disconnected.Load() {
			return
		}
		c.out.Append(wire)
		c.startWriting()
	})
}

// Close tears the connection down from the server side. OnClose fires once.
func (c *Connection) Close() error {
	if c.disconnected.Load() {
		return api.ErrConnectionClosed
	}
	return c.w.loop.RunInLoop(func() { c.srv.evict(c, control.ReasonLocal, nil) })
}

// register installs callbacks and read interest. Loop goroutine only.
func (c *Connection) register() {
	c.ch.SetEdgeTriggered(true)
	c.ch.SetReadCallback(c.handleRead)
	c.ch.SetWriteCallback(c.handleWrite)
	c.ch.SetCloseCallback(c.handleClose)
	c.ch.SetErrorCallback(c.handleError)
	c.ch.EnableReading()
}

func (c *Connection) startWriting() {
	if c.out.Len() > 0 && !c.ch.IsWriting() {
		c.ch.EnableWriting()
	}
}

// handleRead drains the socket, then delivers every complete frame before
// acting on end-of-stream or a read fault.
func (c *Connection) handleRead() {
	if c.disconnected.Load() {
		return
	}
	n, err := c.in.ReadFrom(c.sock.Read)
	if n > 0 {
		c.srv.metrics.BytesRead.Add(float64(n))
	}
	for {
		if c.in.Oversized(c.srv.cfg.MaxMessageSize) {
			c.srv.log.WithContextFields(logging.LogFields{"fd": c.fd, "peer": c.peer.String(), "limit": c.srv.cfg.MaxMessageSize}).Warn("message too large")
			c.srv.evict(c, control.ReasonError, api.ErrMessageTooLarge)
			return
		}
		msg, ok := c.in.PickMessage()
		if !ok {
			break
		}
		c.touch()
		c.srv.metrics.Messages.Inc()
		c.deliver(msg)
		if c.disconnected.Load() {
			return
		}
	}
	switch {
	case err == io.EOF:
		c.handleClose()
		return
	case err != nil:
		c.srv.evict(c, control.ReasonError, err)
		return
	}
	// Read and write readiness may arrive in one report; only the read
	// callback ran, so flush here to avoid losing the write edge.
	if c.out.Len() > 0 {
		c.handleWrite()
	}
}

// handleWrite issues a single write. A remainder re-arms write interest, a
// drained buffer disables it and reports send completion.
func (c *Connection) handleWrite() {
	if c.disconnected.Load() || c.out.Len() == 0 {
		return
	}
	n, err := c.out.WriteTo(c.sock.Write)
	if n > 0 {
		c.srv.metrics.BytesWritten.Add(float64(n))
	}
	if err != nil {
		c.srv.log.WithContextFields(logging.LogFields{"fd": c.fd, "peer": c.peer.String(), "error": err}).Warn("write failed")
		c.srv.evict(c, control.ReasonError, err)
		return
	}
	if c.out.Len() > 0 {
		c.ch.EnableWriting()
		return
	}
	if c.ch.IsWriting() {
		c.ch.DisableWriting()
	}
	if c.srv.onSendComplete != nil {
		c.srv.onSendComplete(c)
	}
}

func (c *Connection) handleClose() {
	c.srv.evict(c, control.ReasonPeer, nil)
}

func (c *Connection) handleError() {
	err := c.sock.SocketError()
	c.srv.evict(c, control.ReasonError, err)
}

func (c *Connection) deliver(msg []byte) {
	fn := c.srv.onMessage
	if fn == nil {
		return
	}
	if c.srv.msgPool == nil {
		fn(c, msg)
		return
	}
	c.inboxMu.Lock()
	c.inbox.Add(msg)
	if c.draining {
		c.inboxMu.Unlock()
		return
	}
	c.draining = true
	c.inboxMu.Unlock()

	if !c.srv.msgPool.AddTask(c.drainInbox) {
		c.srv.metrics.PoolRejected.Inc()
		c.srv.log.WithContextFields(logging.LogFields{"fd": c.fd}).Warn("message pool rejected task, running inline")
		c.drainInbox()
	}
}

func (c *Connection) drainInbox() {
	for {
		c.inboxMu.Lock()
		if c.inbox.Length() == 0 {
			c.draining = false
			c.inboxMu.Unlock()
			return
		}
		msg := c.inbox.Remove().([]byte)
		c.inboxMu.Unlock()
		c.srv.onMessage(c, msg)
	}
}
