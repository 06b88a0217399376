//go:build linux

package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPinRestrictsThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var orig unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &orig))
	defer unix.SchedSetaffinity(0, &orig)

	cpu := -1
	for i := 0; i < 1024; i++ {
		if orig.IsSet(i) {
			cpu = i
			break
		}
	}
	require.GreaterOrEqual(t, cpu, 0)
	require.NoError(t, Pin(cpu))

	var got unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &got))
	assert.Equal(t, 1, got.Count())
	assert.True(t, got.IsSet(cpu))
}

func TestCPUForWraps(t *testing.T) {
	n := runtime.NumCPU()
	assert.Equal(t, 0, CPUFor(0))
	assert.Equal(t, 1%n, CPUFor(n+1))
	assert.Less(t, CPUFor(-3), n)
}
