// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/transport"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr        string          // bind address, e.g. "0.0.0.0:5085" or "[::1]:0"
	WorkerLoops       int             // number of worker event loops (N)
	MessageWorkers    int             // business pool size (M), 0 runs OnMessage inline
	MessageQueueSize  int             // business pool queue capacity
	MainMaxEvents     int             // readiness batch of the accept loop
	WorkerMaxEvents   int             // readiness batch of each worker loop
	PollTimeout       time.Duration   // worker loop wait timeout
	AcceptPollTimeout time.Duration   // accept loop wait timeout
	TimerInterval     time.Duration   // idle scan period of worker loops
	IdleTimeout       time.Duration   // evict connections silent this long, 0 disables
	Framing           api.FramingMode // message framing on read and write
	Delimiter         [4]byte         // terminator for FramingDelimiter
	Backlog           int             // listen(2) queue length
	MaxMessageSize    int             // payload limit per message, 0 disables
	PinLoops          bool            // pin worker loop threads to CPUs
	Logger            *logrus.Logger  // nil uses the package logger
	MetricsRegisterer prometheus.Registerer
	MetricsNamespace  string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:        "0.0.0.0:5085",
		WorkerLoops:       3,
		MessageWorkers:    2,
		MessageQueueSize:  4096,
		MainMaxEvents:     100,
		WorkerMaxEvents:   100,
		PollTimeout:       10 * time.Second,
		AcceptPollTimeout: 10 * time.Second,
		TimerInterval:     5 * time.Second,
		IdleTimeout:       10 * time.Second,
		Framing:           api.FramingLengthPrefixed,
		Delimiter:         api.DefaultDelimiter,
		Backlog:           transport.DefaultBacklog,
	}
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if _, err := transport.ParseAddress(c.ListenAddr); err != nil {
		return errors.Wrapf(api.ErrInvalidConfig, "listen address: %v", err)
	}
	switch {
	case c.WorkerLoops <= 0:
		return errors.Wrapf(api.ErrInvalidConfig, "worker loops must be positive, got %d", c.WorkerLoops)
	case c.MessageWorkers < 0:
		return errors.Wrapf(api.ErrInvalidConfig, "message workers must not be negative, got %d", c.MessageWorkers)
	case c.MainMaxEvents <= 0 || c.WorkerMaxEvents <= 0:
		return errors.Wrap(api.ErrInvalidConfig, "max events must be positive")
	case c.TimerInterval < 0 || c.IdleTimeout < 0:
		return errors.Wrap(api.ErrInvalidConfig, "timer interval and idle timeout must not be negative")
	case c.IdleTimeout > 0 && c.TimerInterval == 0:
		return errors.Wrap(api.ErrInvalidConfig, "idle timeout needs a timer interval")
	case c.MaxMessageSize < 0:
		return errors.Wrapf(api.ErrInvalidConfig, "max message size must not be negative, got %d", c.MaxMessageSize)
	}
	switch c.Framing {
	case api.FramingRaw, api.FramingLengthPrefixed:
	case api.FramingDelimiter:
		if c.Delimiter == ([4]byte{}) {
			return errors.Wrap(api.ErrInvalidConfig, "delimiter framing needs a delimiter")
		}
	default:
		return errors.Wrapf(api.ErrInvalidConfig, "framing %s", c.Framing)
	}
	return nil
}
