// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/reactor"
)

// Option customizes server initialization.
type Option func(*Server)

// WithOnNewConnection is called on the owning worker loop once a connection
// is registered there.
func WithOnNewConnection(fn func(*Connection)) Option {
	return func(s *Server) { s.onNewConnection = fn }
}

// WithOnClose is called once when the peer closed the connection.
func WithOnClose(fn func(*Connection)) Option {
	return func(s *Server) { s.onClose = fn }
}

// WithOnError is called once when a read or write failed.
func WithOnError(fn func(*Connection, error)) Option {
	return func(s *Server) { s.onError = fn }
}

// WithOnMessage receives every framed message, in arrival order per
// connection. With MessageWorkers > 0 it runs on the business pool.
func WithOnMessage(fn func(*Connection, []byte)) Option {
	return func(s *Server) { s.onMessage = fn }
}

// WithOnSendComplete is called when a connection's output buffer drained.
func WithOnSendComplete(fn func(*Connection)) Option {
	return func(s *Server) { s.onSendComplete = fn }
}

// WithOnIdleTimeout is called with the descriptor of an evicted idle
// connection, after it left the registry and before the descriptor closes.
func WithOnIdleTimeout(fn func(fd int)) Option {
	return func(s *Server) { s.onIdleTimeout = fn }
}

// WithOnPollTimeout is called by any loop whose wait returned no events.
func WithOnPollTimeout(fn func(*reactor.EventLoop)) Option {
	return func(s *Server) { s.onPollTimeout = fn }
}

// WithMessagePool replaces the internal business pool. The server stops it
// on Stop.
func WithMessagePool(pool api.ThreadPool) Option {
	return func(s *Server) { s.msgPool = pool }
}
