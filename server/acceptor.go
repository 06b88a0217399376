// File: server/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor owns the listening socket and its level-triggered channel on the
// accept loop.

package server

import (
	"time"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/logging"
	"github.com/momentics/hioload-tcp/reactor"
	"github.com/momentics/hioload-tcp/transport"
)

// DefaultAcceptPause is how long the listening channel stays quiet after an
// accept error that is not transient, such as EMFILE. The channel is level
// triggered, so without the pause the loop would spin on the pending client.
const DefaultAcceptPause = 100 * time.Millisecond

// Acceptor accepts one pending connection per readiness report.
type Acceptor struct {
	loop     *reactor.EventLoop
	sock     *transport.Socket
	ch       *reactor.Channel
	addr     transport.Address
	onNew    func(*transport.Socket, transport.Address)
	accept   func() (*transport.Socket, transport.Address, error)
	pauseFor time.Duration
	log      *logging.ContextLogger
	metrics  *control.Metrics
}

// NewAcceptor binds and listens on addr and registers read interest on loop.
// It must be called before loop runs or on the loop goroutine.
func NewAcceptor(loop *reactor.EventLoop, addr transport.Address, backlog int,
	log *logging.ContextLogger, metrics *control.Metrics) (*Acceptor, error) {

	sock, err := transport.NewStreamSocket(addr.Family())
	if err != nil {
		return nil, err
	}
	setup := []func() error{
		func() error { return sock.SetKeepAlive(true) },
		func() error { return sock.SetReuseAddr(true) },
		func() error { return sock.SetReusePort(true) },
		func() error { return sock.SetNoDelay(true) },
		func() error { return sock.Bind(addr) },
		func() error { return sock.Listen(backlog) },
	}
	for _, step := range setup {
		if err := step(); err != nil {
			sock.Close()
			return nil, errors.Wrapf(err, "listen on %s", addr)
		}
	}
	local, err := sock.LocalAddr()
	if err != nil {
		sock.Close()
		return nil, err
	}

	a := &Acceptor{
		loop:     loop,
		sock:     sock,
		addr:     local,
		accept:   sock.Accept,
		pauseFor: DefaultAcceptPause,
		log:      log,
		metrics:  metrics,
	}
	a.ch = reactor.NewChannel(loop, sock.Fd())
	a.ch.SetReadCallback(a.handleRead)
	a.ch.EnableReading()
	return a, nil
}

// Addr returns the bound address with the kernel-chosen port filled in.
func (a *Acceptor) Addr() transport.Address { return a.addr }

// SetNewConnectionCallback installs the handler for accepted sockets. It
// runs on the accept loop and takes ownership of the socket.
func (a *Acceptor) SetNewConnectionCallback(fn func(*transport.Socket, transport.Address)) {
	a.onNew = fn
}

func (a *Acceptor) handleRead() {
	cli, peer, err := a.accept()
	if err != nil {
		if !transport.IsTemporary(err) {
			a.metrics.AcceptErrors.Inc()
			a.log.WithContextFields(logging.LogFields{"addr": a.addr.String(), "error": err, "pause": a.pauseFor.String()}).Warn("accept failed")
			a.pause()
		}
		return
	}
	if a.onNew == nil {
		cli.Close()
		return
	}
	a.onNew(cli, peer)
}

// pause drops read interest and restores it from the loop after pauseFor.
// Once the loop has stopped the task is refused and the channel stays quiet.
func (a *Acceptor) pause() {
	a.ch.DisableReading()
	time.AfterFunc(a.pauseFor, func() {
		_ = a.loop.PushTask(a.resume)
	})
}

func (a *Acceptor) resume() {
	if a.sock.Closed() || !a.ch.Registered() || a.ch.IsReading() {
		return
	}
	a.ch.EnableReading()
}

// Close releases the listening socket. Call after the accept loop stopped.
func (a *Acceptor) Close() error {
	return a.sock.Close()
}
