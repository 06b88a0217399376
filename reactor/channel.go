// File: reactor/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel binds one descriptor to an interest mask and callbacks. It does not
// own the descriptor. All methods must run on the owning loop's goroutine;
// EventLoop panics when that is violated while the loop is running.

package reactor

// Channel is registered with exactly one EventLoop.
type Channel struct {
	loop       *EventLoop
	fd         int
	interest   Events
	gen        uint32
	registered bool

	onRead  func()
	onWrite func()
	onClose func()
	onError func()
}

// NewChannel creates an unregistered channel for fd on loop.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd}
}

func (c *Channel) Fd() int             { return c.fd }
func (c *Channel) Loop() *EventLoop    { return c.loop }
func (c *Channel) Interest() Events    { return c.interest }
func (c *Channel) Registered() bool    { return c.registered }
func (c *Channel) IsWriting() bool     { return c.interest&EventWrite != 0 }
func (c *Channel) IsReading() bool     { return c.interest&EventRead != 0 }
func (c *Channel) EdgeTriggered() bool { return c.interest&EventEdge != 0 }

func (c *Channel) SetReadCallback(fn func())  { c.onRead = fn }
func (c *Channel) SetWriteCallback(fn func()) { c.onWrite = fn }
func (c *Channel) SetCloseCallback(fn func()) { c.onClose = fn }
func (c *Channel) SetErrorCallback(fn func()) { c.onError = fn }

// SetEdgeTriggered switches delivery mode. It takes effect on the next
// interest update.
func (c *Channel) SetEdgeTriggered(on bool) {
	if on {
		c.interest |= EventEdge
	} else {
		c.interest &^= EventEdge
	}
}

// WatchPeerClose subscribes to half-close notifications.
func (c *Channel) WatchPeerClose(on bool) {
	if on {
		c.interest |= EventPeerClosed
	} else {
		c.interest &^= EventPeerClosed
	}
}

func (c *Channel) EnableReading() {
	c.interest |= EventRead
	c.update()
}

func (c *Channel) DisableReading() {
	c.interest &^= EventRead
	c.update()
}

func (c *Channel) EnableWriting() {
	c.interest |= EventWrite
	c.update()
}

func (c *Channel) DisableWriting() {
	c.interest &^= EventWrite
	c.update()
}

// DisableAll clears read and write interest but stays registered.
func (c *Channel) DisableAll() {
	c.interest &^= EventRead | EventWrite | EventPeerClosed
	c.update()
}

// Remove unregisters the channel from its loop. Safe to call twice.
func (c *Channel) Remove() {
	c.loop.removeChannel(c)
}

func (c *Channel) update() {
	c.loop.updateChannel(c)
}

// HandleEvent dispatches exactly one callback for a readiness report, by
// priority: peer-closed, readable, writable, and error for anything else.
func (c *Channel) HandleEvent(rev Events) {
	switch {
	case rev&EventPeerClosed != 0:
		if c.onClose != nil {
			c.onClose()
		}
	case rev&EventRead != 0:
		if c.onRead != nil {
			c.onRead()
		}
	case rev&EventWrite != 0:
		if c.onWrite != nil {
			c.onWrite()
		}
	default:
		if c.onError != nil {
			c.onError()
		}
	}
}
