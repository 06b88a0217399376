// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import (
	"errors"

	"github.com/momentics/hioload-tcp/api"
)

var (
	// ErrPoolStopped is returned once Stop has been called.
	ErrPoolStopped = api.ErrPoolStopped

	// ErrInvalidWorkerCount indicates a non-positive worker count.
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)
