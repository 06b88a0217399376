// File: internal/cli/cli.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package cli binds server configuration to cobra flags and provides the
// process plumbing shared by the example servers: logging setup, a
// Prometheus endpoint and signal driven shutdown.

package cli

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/logging"
	"github.com/momentics/hioload-tcp/server"
)

// Flags holds flag values that need parsing before they reach the Config.
type Flags struct {
	cfg         *server.Config
	framing     string
	delimiter   string
	logLevel    string
	logFormat   string
	metricsAddr string
}

// BindServerFlags registers server options on cmd, defaulting to cfg.
func BindServerFlags(cmd *cobra.Command, cfg *server.Config) *Flags {
	f := &Flags{cfg: cfg}
	fs := cmd.Flags()
	fs.StringVarP(&cfg.ListenAddr, "listen", "l", cfg.ListenAddr, "listen address ip:port")
	fs.IntVar(&cfg.WorkerLoops, "loops", cfg.WorkerLoops, "number of worker event loops")
	fs.IntVar(&cfg.MessageWorkers, "workers", cfg.MessageWorkers, "business worker goroutines, 0 handles messages on the I/O loop")
	fs.IntVar(&cfg.MessageQueueSize, "queue", cfg.MessageQueueSize, "business worker queue size")
	fs.IntVar(&cfg.MainMaxEvents, "main-max-events", cfg.MainMaxEvents, "readiness batch of the accept loop")
	fs.IntVar(&cfg.WorkerMaxEvents, "worker-max-events", cfg.WorkerMaxEvents, "readiness batch of each worker loop")
	fs.DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "worker loop wait timeout")
	fs.DurationVar(&cfg.AcceptPollTimeout, "accept-poll-timeout", cfg.AcceptPollTimeout, "accept loop wait timeout")
	fs.DurationVar(&cfg.TimerInterval, "timer-interval", cfg.TimerInterval, "idle scan period")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "evict connections silent this long, 0 disables")
	fs.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "listen backlog")
	fs.IntVar(&cfg.MaxMessageSize, "max-message-size", cfg.MaxMessageSize, "largest accepted message payload in bytes, 0 disables")
	fs.BoolVar(&cfg.PinLoops, "pin-loops", cfg.PinLoops, "pin worker loop threads to CPUs")
	fs.StringVar(&f.framing, "framing", cfg.Framing.String(), "message framing: raw, length-prefixed or delimiter")
	fs.StringVar(&f.delimiter, "delimiter", string(cfg.Delimiter[:]), "4-byte delimiter for delimiter framing")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return f
}

// Apply parses the string flags into the Config and builds the logger.
func (f *Flags) Apply() (*logging.ContextLogger, error) {
	mode, err := api.ParseFramingMode(f.framing)
	if err != nil {
		return nil, err
	}
	f.cfg.Framing = mode
	if mode == api.FramingDelimiter {
		if len(f.delimiter) != 4 {
			return nil, errors.Wrapf(api.ErrInvalidConfig, "delimiter must be 4 bytes, got %q", f.delimiter)
		}
		copy(f.cfg.Delimiter[:], f.delimiter)
	}
	log, err := logging.New(os.Stderr, f.logLevel, f.logFormat)
	if err != nil {
		return nil, err
	}
	f.cfg.Logger = log.Logger
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		f.cfg.MetricsRegisterer = reg
		ServeMetrics(f.metricsAddr, reg, log)
	}
	return log, f.cfg.Validate()
}

// ServeMetrics exposes reg on addr/metrics in the background.
func ServeMetrics(addr string, reg *prometheus.Registry, log *logging.ContextLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithContextFields(logging.LogFields{"addr": addr, "error": err}).Error("metrics endpoint failed")
		}
	}()
	return srv
}

// StopOnSignal calls stop once SIGINT or SIGTERM arrives.
func StopOnSignal(log *logging.ContextLogger, stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.WithContextFields(logging.LogFields{"signal": sig.String()}).Info("shutting down")
		stop()
	}()
}
