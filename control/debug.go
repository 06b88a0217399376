// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import "sync"

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts or replaces a named hook. Probes run on the caller
// of DumpState and must be safe for concurrent use.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// Names lists registered probes.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make([]string, 0, len(dp.probes))
	for k := range dp.probes {
		out = append(out, k)
	}
	return out
}

// DumpState returns output of all probes. Probes are evaluated outside the
// registry lock.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	snapshot := make(map[string]func() any, len(dp.probes))
	for k, fn := range dp.probes {
		snapshot[k] = fn
	}
	dp.mu.RUnlock()

	out := make(map[string]any, len(snapshot))
	for k, fn := range snapshot {
		out[k] = fn()
	}
	return out
}
