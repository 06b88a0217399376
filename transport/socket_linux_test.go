//go:build linux

package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func listenLoopback(t *testing.T) *Socket {
	t.Helper()
	addr, err := ParseAddress("127.0.0.1:0")
	require.NoError(t, err)
	s, err := NewStreamSocket(addr.Family())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SetReuseAddr(true))
	require.NoError(t, s.Bind(addr))
	require.NoError(t, s.Listen(0))
	return s
}

func acceptOne(t *testing.T, ln *Socket) (*Socket, Address) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c, peer, err := ln.Accept()
		if err == nil {
			t.Cleanup(func() { c.Close() })
			return c, peer
		}
		require.True(t, IsTemporary(err), "unexpected accept error %v", err)
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no connection accepted")
	return nil, Address{}
}

func TestListenAcceptReadWrite(t *testing.T) {
	ln := listenLoopback(t)
	local, err := ln.LocalAddr()
	require.NoError(t, err)
	require.NotZero(t, local.Port(), "kernel resolves the ephemeral port")

	_, _, err = ln.Accept()
	assert.True(t, IsTemporary(err), "empty backlog would block")

	cli, err := net.Dial("tcp", local.String())
	require.NoError(t, err)
	defer cli.Close()

	srv, peer := acceptOne(t, ln)
	assert.Equal(t, cli.LocalAddr().String(), peer.String())
	assert.Equal(t, peer, srv.PeerAddr())
	require.NoError(t, srv.SetNoDelay(true))
	require.NoError(t, srv.SetKeepAlive(true))
	assert.NoError(t, srv.SocketError())

	buf := make([]byte, 16)
	_, err = srv.Read(buf)
	assert.ErrorIs(t, err, unix.EAGAIN, "non-blocking read with no data")

	_, err = cli.Write([]byte("ping"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err := srv.Read(buf)
		return err == nil && string(buf[:n]) == "ping"
	}, 5*time.Second, time.Millisecond)

	n, err := srv.Write([]byte("pong"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, cli.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err = cli.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf[:n]))

	require.NoError(t, srv.ShutdownWrite())
	n, err = cli.Read(buf)
	assert.Zero(t, n)
	assert.Error(t, err, "peer sees end of stream")
}

func TestCloseIsIdempotent(t *testing.T) {
	ln := listenLoopback(t)
	require.NoError(t, ln.Close())
	assert.True(t, ln.Closed())
	assert.NoError(t, ln.Close())
}

func TestBindInUseFails(t *testing.T) {
	ln := listenLoopback(t)
	local, err := ln.LocalAddr()
	require.NoError(t, err)

	s, err := NewStreamSocket(FamilyV4)
	require.NoError(t, err)
	defer s.Close()
	assert.Error(t, s.Bind(local))
}
