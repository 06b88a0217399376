// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe store for settings that may change while the server runs, with
// listeners notified after every update.

package control

import (
	"sync"
	"time"
)

// Runtime setting keys understood by the server.
const (
	KeyIdleTimeout = "idle_timeout"
)

// ConfigStore is a key/value map with snapshot reads and change listeners.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func(changed map[string]any)
}

// NewConfigStore initializes an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{config: make(map[string]any)}
}

// GetSnapshot returns a copy of all values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// Duration reads a time.Duration value, falling back to def.
func (cs *ConfigStore) Duration(key string, def time.Duration) time.Duration {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if d, ok := cs.config[key].(time.Duration); ok {
		return d
	}
	return def
}

// SetConfig merges values and then calls every listener with the changed
// keys, synchronously and outside the lock.
func (cs *ConfigStore) SetConfig(values map[string]any) {
	cs.mu.Lock()
	changed := make(map[string]any, len(values))
	for k, v := range values {
		cs.config[k] = v
		changed[k] = v
	}
	listeners := append([]func(map[string]any){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(changed)
	}
}

// OnReload registers a listener for later updates.
func (cs *ConfigStore) OnReload(fn func(changed map[string]any)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
