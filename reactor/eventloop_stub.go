//go:build !linux
// +build !linux

// File: reactor/eventloop_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-tcp/api"

func currentThreadID() int64 { return 0 }

func newEventCounter() (eventCounter, error) { return nil, api.ErrNotSupported }

func newOneShotTimer() (oneShotTimer, error) { return nil, api.ErrNotSupported }
