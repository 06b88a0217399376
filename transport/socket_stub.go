//go:build !linux
// +build !linux

// File: transport/socket_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package transport

import "github.com/momentics/hioload-tcp/api"

func NewStreamSocket(Family) (*Socket, error) { return nil, api.ErrNotSupported }

func (s *Socket) SetNoDelay(bool) error             { return api.ErrNotSupported }
func (s *Socket) SetReuseAddr(bool) error           { return api.ErrNotSupported }
func (s *Socket) SetReusePort(bool) error           { return api.ErrNotSupported }
func (s *Socket) SetKeepAlive(bool) error           { return api.ErrNotSupported }
func (s *Socket) Bind(Address) error                { return api.ErrNotSupported }
func (s *Socket) Listen(int) error                  { return api.ErrNotSupported }
func (s *Socket) LocalAddr() (Address, error)       { return Address{}, api.ErrNotSupported }
func (s *Socket) Read([]byte) (int, error)          { return 0, api.ErrNotSupported }
func (s *Socket) Write([]byte) (int, error)         { return 0, api.ErrNotSupported }
func (s *Socket) ShutdownWrite() error              { return api.ErrNotSupported }
func (s *Socket) SocketError() error                { return api.ErrNotSupported }
func (s *Socket) Close() error                      { s.closed.Store(true); return nil }
func (s *Socket) Accept() (*Socket, Address, error) { return nil, Address{}, api.ErrNotSupported }

func IsTemporary(error) bool { return false }
