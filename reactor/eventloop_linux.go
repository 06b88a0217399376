//go:build linux
// +build linux

// File: reactor/eventloop_linux.go
// Author: momentics <momentics@gmail.com>
//
// eventfd(2) wake-up counter, timerfd(2) one-shot timer and thread ids.

package reactor

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func currentThreadID() int64 { return int64(unix.Gettid()) }

type eventFD struct {
	fd int
}

func newEventCounter() (eventCounter, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "eventfd")
	}
	return &eventFD{fd: fd}, nil
}

func (e *eventFD) Fd() int { return e.fd }

// Notify adds one to the counter. A saturated counter already guarantees a
// pending wake-up, so EAGAIN is ignored.
func (e *eventFD) Notify() error {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	for {
		_, err := unix.Write(e.fd, b[:])
		switch err {
		case nil, unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return errors.Wrap(err, "eventfd write")
		}
	}
}

func (e *eventFD) Drain() error { return drain8(e.fd, "eventfd read") }
func (e *eventFD) Close() error { return unix.Close(e.fd) }

type timerFD struct {
	fd int
}

func newOneShotTimer() (oneShotTimer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "timerfd create")
	}
	return &timerFD{fd: fd}, nil
}

func (t *timerFD) Fd() int { return t.fd }

func (t *timerFD) Arm(d time.Duration) error {
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	return errors.Wrap(unix.TimerfdSettime(t.fd, 0, &spec, nil), "timerfd settime")
}

func (t *timerFD) Drain() error { return drain8(t.fd, "timerfd read") }
func (t *timerFD) Close() error { return unix.Close(t.fd) }

// drain8 consumes the 8-byte counter of an eventfd or timerfd.
func drain8(fd int, op string) error {
	var b [8]byte
	for {
		_, err := unix.Read(fd, b[:])
		switch err {
		case nil, unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return errors.Wrap(err, op)
		}
	}
}
