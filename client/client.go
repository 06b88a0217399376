// File: client/client.go
// Package client provides a blocking, framed TCP client for servers built on
// this module.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The client speaks the same framing modes as the server:
// - Dialing with linear backoff, bounded by DialAttempts
// - Optional per-call read and write deadlines
// - Send is safe from many goroutines; Recv must be called from one
// - Idempotent Close

package client

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/core/buffer"
	"github.com/momentics/hioload-tcp/internal/logging"
)

// Config holds dialing and framing parameters.
type Config struct {
	Addr         string
	Framing      api.FramingMode
	Delimiter    [4]byte
	DialTimeout  time.Duration // per attempt
	DialAttempts int           // 0 or 1 means a single attempt
	ReadTimeout  time.Duration // 0 disables the read deadline
	WriteTimeout time.Duration // 0 disables the write deadline
	Logger       *logging.ContextLogger
}

// DefaultConfig mirrors the server defaults.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		Framing:      api.FramingLengthPrefixed,
		Delimiter:    api.DefaultDelimiter,
		DialTimeout:  5 * time.Second,
		DialAttempts: 1,
	}
}

const readChunk = 4096

// Client is one framed connection.
type Client struct {
	cfg    Config
	conn   net.Conn
	framer buffer.Framer
	log    *logging.ContextLogger

	wmu  sync.Mutex
	in   *buffer.Buffer
	tmp  []byte
	done atomic.Bool
}

// Dial connects to cfg.Addr, retrying with linear backoff.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	attempts := cfg.DialAttempts
	if attempts < 1 {
		attempts = 1
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
		if err == nil {
			framer := buffer.NewFramer(cfg.Framing, cfg.Delimiter)
			return &Client{
				cfg:    cfg,
				conn:   conn,
				framer: framer,
				log:    cfg.Logger,
				in:     buffer.New(framer),
				tmp:    make([]byte, readChunk),
			}, nil
		}
		lastErr = err
		cfg.Logger.WithContextFields(logging.LogFields{"addr": cfg.Addr, "attempt": i, "error": err}).Debug("dial failed")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "dial cancelled")
		case <-time.After(time.Duration(i) * 100 * time.Millisecond):
		}
	}
	return nil, errors.Wrapf(lastErr, "dial %s after %d attempts", cfg.Addr, attempts)
}

// LocalAddr returns the client side address.
func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Send frames msg and writes it fully.
func (c *Client) Send(msg []byte) error {
	if c.done.Load() {
		return api.ErrConnectionClosed
	}
	wire := c.framer.Encode(nil, msg)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return errors.Wrap(err, "set write deadline")
		}
	}
	for len(wire) > 0 {
		n, err := c.conn.Write(wire)
		if err != nil {
			return errors.Wrap(err, "write")
		}
		wire = wire[n:]
	}
	return nil
}

// Recv blocks until one complete message is buffered. In raw mode every read
// forms one message.
func (c *Client) Recv() ([]byte, error) {
	if c.done.Load() {
		return nil, api.ErrConnectionClosed
	}
	for {
		if msg, ok := c.in.PickMessage(); ok {
			return msg, nil
		}
		if c.cfg.ReadTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
				return nil, errors.Wrap(err, "set read deadline")
			}
		}
		n, err := c.conn.Read(c.tmp)
		if n > 0 {
			c.in.Append(c.tmp[:n])
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "read")
		}
	}
}

// Request sends msg and waits for the next message.
func (c *Client) Request(msg []byte) ([]byte, error) {
	if err := c.Send(msg); err != nil {
		return nil, err
	}
	return c.Recv()
}

// Close releases the connection. Further calls return nil.
func (c *Client) Close() error {
	if !c.done.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
