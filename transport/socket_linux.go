//go:build linux
// +build linux

// File: transport/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP sockets over golang.org/x/sys/unix.

package transport

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
)

// NewStreamSocket creates a non-blocking, close-on-exec TCP socket.
func NewStreamSocket(family Family) (*Socket, error) {
	domain := unix.AF_INET
	if family == FamilyV6 {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, errors.Wrap(err, "socket create")
	}
	return &Socket{fd: fd}, nil
}

func (s *Socket) setBool(level, opt int, on bool, name string) error {
	v := 0
	if on {
		v = 1
	}
	if err := unix.SetsockoptInt(s.fd, level, opt, v); err != nil {
		return errors.Wrapf(err, "setsockopt %s", name)
	}
	return nil
}

func (s *Socket) SetNoDelay(on bool) error {
	return s.setBool(unix.IPPROTO_TCP, unix.TCP_NODELAY, on, "TCP_NODELAY")
}

func (s *Socket) SetReuseAddr(on bool) error {
	return s.setBool(unix.SOL_SOCKET, unix.SO_REUSEADDR, on, "SO_REUSEADDR")
}

func (s *Socket) SetReusePort(on bool) error {
	return s.setBool(unix.SOL_SOCKET, unix.SO_REUSEPORT, on, "SO_REUSEPORT")
}

func (s *Socket) SetKeepAlive(on bool) error {
	return s.setBool(unix.SOL_SOCKET, unix.SO_KEEPALIVE, on, "SO_KEEPALIVE")
}

// Bind binds the socket to addr.
func (s *Socket) Bind(addr Address) error {
	sa, err := toSockaddr(addr)
	if err != nil {
		return err
	}
	if err := unix.Bind(s.fd, sa); err != nil {
		return errors.Wrapf(err, "bind %s", addr)
	}
	s.local = addr
	return nil
}

// Listen puts the socket into listening state.
func (s *Socket) Listen(backlog int) error {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if err := unix.Listen(s.fd, backlog); err != nil {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// Accept takes one pending connection. The returned error is the raw errno so
// callers can tell EAGAIN apart from real faults.
func (s *Socket) Accept() (*Socket, Address, error) {
	nfd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, Address{}, err
	}
	peer, _ := fromSockaddr(sa)
	return &Socket{fd: nfd, peer: peer}, peer, nil
}

// LocalAddr returns the bound address as reported by the kernel, which
// resolves an ephemeral port 0 to the real one.
func (s *Socket) LocalAddr() (Address, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return Address{}, errors.Wrap(err, "getsockname")
	}
	return fromSockaddr(sa)
}

// Read issues one non-blocking read. Errors are raw errno values.
func (s *Socket) Read(p []byte) (int, error) {
	return unix.Read(s.fd, p)
}

// Write issues one non-blocking write. Errors are raw errno values.
func (s *Socket) Write(p []byte) (int, error) {
	return unix.Write(s.fd, p)
}

// ShutdownWrite half-closes the write side.
func (s *Socket) ShutdownWrite() error {
	return unix.Shutdown(s.fd, unix.SHUT_WR)
}

// Close releases the descriptor; later calls are no-ops.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(s.fd)
}

func toSockaddr(a Address) (unix.Sockaddr, error) {
	switch a.Family() {
	case FamilyV4:
		return &unix.SockaddrInet4{Port: int(a.Port()), Addr: a.IP().As4()}, nil
	case FamilyV6:
		return &unix.SockaddrInet6{Port: int(a.Port()), Addr: a.IP().As16()}, nil
	}
	return nil, errors.Wrapf(api.ErrInvalidAddress, "%s", a)
}

func fromSockaddr(sa unix.Sockaddr) (Address, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return AddressFrom(netipAddrPort4(v.Addr, v.Port)), nil
	case *unix.SockaddrInet6:
		return AddressFrom(netipAddrPort6(v.Addr, v.Port)), nil
	}
	return Address{}, errors.Wrapf(api.ErrInvalidAddress, "unsupported sockaddr %T", sa)
}

// IsTemporary reports accept/read/write errors that mean "nothing to do
// now": would-block, interrupted call, or a connection aborted before accept.
func IsTemporary(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED)
}

// SocketError returns the pending SO_ERROR, or nil.
func (s *Socket) SocketError() error {
	v, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return errors.Wrap(err, "getsockopt SO_ERROR")
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}
