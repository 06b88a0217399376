// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by the reactor, transport and server layers.

package api

import "errors"

// Common errors used across the library.
var (
	ErrNotSupported     = errors.New("operation not supported on this platform")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrLoopStopped      = errors.New("event loop is stopped")
	ErrPoolStopped      = errors.New("thread pool is stopped")
	ErrConnectionClosed = errors.New("connection is closed")
	ErrServerNotRunning = errors.New("server is not running")
	ErrAlreadyRunning   = errors.New("server already running")
	ErrMessageTooLarge  = errors.New("message exceeds size limit")
)
