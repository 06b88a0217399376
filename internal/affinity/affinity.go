// File: internal/affinity/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are
// located in separate files guarded by build tags.

package affinity

import "runtime"

// Pin binds the calling OS thread to a logical CPU. The caller must hold the
// thread with runtime.LockOSThread, otherwise the goroutine may migrate.
func Pin(cpuID int) error {
	return pinPlatform(cpuID)
}

// ThreadID returns the kernel id of the calling OS thread, or 0 where the
// platform has none. It is only stable under runtime.LockOSThread.
func ThreadID() int {
	return threadIDPlatform()
}

// CPUFor spreads loop index i over the available CPUs.
func CPUFor(i int) int {
	n := runtime.NumCPU()
	if i < 0 {
		i = -i
	}
	return i % n
}
