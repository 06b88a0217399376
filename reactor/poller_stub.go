//go:build !linux
// +build !linux

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-tcp/api"

// NewPoller returns an error for unsupported platforms.
func NewPoller(int) (Poller, error) {
	return nil, api.ErrNotSupported
}
