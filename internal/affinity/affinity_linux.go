//go:build linux

// File: internal/affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// pinPlatform uses sched_setaffinity on the calling thread (pid 0).
func pinPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errors.Wrapf(err, "affinity: pin cpu %d", cpuID)
	}
	return nil
}

func threadIDPlatform() int { return unix.Gettid() }
