//go:build linux

package server

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/logging"
	"github.com/momentics/hioload-tcp/reactor"
	"github.com/momentics/hioload-tcp/transport"
)

func TestAcceptorPausesOnDescriptorExhaustion(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	log := logging.Wrap(l)

	loop, err := reactor.NewEventLoop(reactor.LoopConfig{Name: "accept", PollTimeout: 20 * time.Millisecond, Logger: log})
	require.NoError(t, err)
	addr, err := transport.ParseAddress("127.0.0.1:0")
	require.NoError(t, err)
	metrics := control.NewMetrics("", nil)
	a, err := NewAcceptor(loop, addr, 0, log, metrics)
	require.NoError(t, err)

	var failing atomic.Bool
	var attempts atomic.Int32
	failing.Store(true)
	a.pauseFor = 100 * time.Millisecond
	a.accept = func() (*transport.Socket, transport.Address, error) {
		if failing.Load() {
			attempts.Add(1)
			return nil, transport.Address{}, unix.EMFILE
		}
		return a.sock.Accept()
	}
	accepted := make(chan struct{}, 1)
	a.SetNewConnectionCallback(func(s *transport.Socket, _ transport.Address) {
		s.Close()
		accepted <- struct{}{}
	})

	go loop.Run()
	defer func() {
		loop.Close()
		a.Close()
	}()

	c, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	time.Sleep(350 * time.Millisecond)
	n := attempts.Load()
	assert.GreaterOrEqual(t, n, int32(2), "accept is retried after the pause")
	assert.LessOrEqual(t, n, int32(6), "the pending client does not spin the loop")

	failing.Store(false)
	select {
	case <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("accept did not resume")
	}
}
