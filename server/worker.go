// File: server/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/reactor"
)

// worker is one I/O loop plus the connections pinned to it. conns is owned
// by the loop goroutine and needs no lock.
type worker struct {
	id    int
	loop  *reactor.EventLoop
	conns map[int]*Connection
	srv   *Server
}

// attach registers c on this loop and announces it. Loop goroutine only.
func (w *worker) attach(c *Connection) {
	if c.disconnected.Load() {
		return
	}
	c.register()
	w.conns[c.fd] = c
	if w.srv.onNewConnection != nil {
		w.srv.onNewConnection(c)
	}
}

func (w *worker) detach(c *Connection) {
	if cur, ok := w.conns[c.fd]; ok && cur == c {
		delete(w.conns, c.fd)
	}
}

// scanIdle evicts connections whose last framed message is older than the
// idle timeout. It runs on every timer tick.
func (w *worker) scanIdle() {
	timeout := w.srv.IdleTimeout()
	if timeout <= 0 || len(w.conns) == 0 {
		return
	}
	now := time.Now()
	var expired []*Connection
	for _, c := range w.conns {
		if now.Sub(c.LastActivity()) > timeout {
			expired = append(expired, c)
		}
	}
	for _, c := range expired {
		w.srv.evict(c, control.ReasonIdle, nil)
	}
}
