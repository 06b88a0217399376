// File: transport/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket owns exactly one OS socket descriptor. Platform specific operations
// live in socket_linux.go; other platforms get stubs.

package transport

import "sync/atomic"

// DefaultBacklog is the listen(2) queue length used when none is configured.
const DefaultBacklog = 128

// Socket is non-copyable; Close releases the descriptor exactly once.
type Socket struct {
	fd     int
	closed atomic.Bool
	local  Address
	peer   Address
}

// Fd returns the raw descriptor. It stays valid until Close.
func (s *Socket) Fd() int { return s.fd }

// PeerAddr returns the remote address recorded at accept time.
func (s *Socket) PeerAddr() Address { return s.peer }

// Closed reports whether Close has been called.
func (s *Socket) Closed() bool { return s.closed.Load() }
