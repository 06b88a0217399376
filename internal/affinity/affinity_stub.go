//go:build !linux

// File: internal/affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import "github.com/momentics/hioload-tcp/api"

func pinPlatform(int) error { return api.ErrNotSupported }

func threadIDPlatform() int { return 0 }
