//go:build linux
// +build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) Poller. The registration generation travels in the Pad half
// of the epoll data union next to the descriptor.

package reactor

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
	ready  []Ready
}

// NewPoller creates an epoll instance returning at most maxEvents per Wait.
func NewPoller(maxEvents int) (Poller, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll create")
	}
	return &epollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
		ready:  make([]Ready, 0, maxEvents),
	}, nil
}

func toEpoll(interest Events) uint32 {
	var ev uint32
	if interest&EventRead != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if interest&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	if interest&EventPeerClosed != 0 {
		ev |= unix.EPOLLRDHUP
	}
	if interest&EventEdge != 0 {
		ev |= unix.EPOLLET
	}
	return ev
}

func fromEpoll(ev uint32) Events {
	var e Events
	if ev&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		e |= EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		e |= EventWrite
	}
	if ev&unix.EPOLLRDHUP != 0 {
		e |= EventPeerClosed
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		e |= EventError
	}
	return e
}

func (p *epollPoller) ctl(op, fd int, interest Events, gen uint32) error {
	ev := unix.EpollEvent{
		Events: toEpoll(interest),
		Fd:     int32(fd),
		Pad:    int32(gen),
	}
	return unix.EpollCtl(p.epfd, op, fd, &ev)
}

func (p *epollPoller) Add(fd int, interest Events, gen uint32) error {
	return errors.Wrapf(p.ctl(unix.EPOLL_CTL_ADD, fd, interest, gen), "epoll add fd=%d", fd)
}

func (p *epollPoller) Modify(fd int, interest Events, gen uint32) error {
	return errors.Wrapf(p.ctl(unix.EPOLL_CTL_MOD, fd, interest, gen), "epoll mod fd=%d", fd)
}

func (p *epollPoller) Remove(fd int) error {
	return errors.Wrapf(p.ctl(unix.EPOLL_CTL_DEL, fd, EventNone, 0), "epoll del fd=%d", fd)
}

func (p *epollPoller) Wait(timeout time.Duration) ([]Ready, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	for {
		n, err := unix.EpollWait(p.epfd, p.events, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "epoll wait")
		}
		p.ready = p.ready[:0]
		for i := 0; i < n; i++ {
			ev := &p.events[i]
			p.ready = append(p.ready, Ready{
				Fd:     int(ev.Fd),
				Gen:    uint32(ev.Pad),
				Events: fromEpoll(ev.Events),
			})
		}
		return p.ready, nil
	}
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
