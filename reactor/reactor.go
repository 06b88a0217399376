// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral poller contract and readiness flags.

package reactor

import (
	"strings"
	"time"
)

// Events is both an interest mask and a readiness mask.
type Events uint32

const (
	// EventRead covers normal and priority input.
	EventRead Events = 1 << iota
	// EventWrite reports the socket can accept more output.
	EventWrite
	// EventPeerClosed reports the peer shut down its write side.
	EventPeerClosed
	// EventError reports an error or hang-up condition. Always delivered.
	EventError
	// EventEdge selects edge-triggered delivery. Interest only.
	EventEdge
)

// EventNone is the empty mask.
const EventNone Events = 0

func (e Events) String() string {
	if e == EventNone {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		bit  Events
		name string
	}{
		{EventRead, "read"},
		{EventWrite, "write"},
		{EventPeerClosed, "peer-closed"},
		{EventError, "error"},
		{EventEdge, "edge"},
	} {
		if e&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

// Ready is one readiness report. Gen is the registration generation the
// poller was given on Add/Modify; reports carrying a stale Gen are dropped.
type Ready struct {
	Fd     int
	Gen    uint32
	Events Events
}

// Poller is the OS readiness multiplexer owned by one EventLoop.
type Poller interface {
	// Add registers fd with the given interest.
	Add(fd int, interest Events, gen uint32) error
	// Modify replaces the interest of an already registered fd.
	Modify(fd int, interest Events, gen uint32) error
	// Remove unregisters fd.
	Remove(fd int) error
	// Wait blocks up to timeout (negative means forever) and returns the
	// ready set. Interrupted waits are retried. An empty result is an idle
	// tick. The returned slice is reused by the next call.
	Wait(timeout time.Duration) ([]Ready, error)
	// Close releases the OS multiplexer.
	Close() error
}
