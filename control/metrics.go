// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the server core.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Close reasons used as the "reason" label of connections_closed_total.
const (
	ReasonPeer     = "peer"
	ReasonError    = "error"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
	ReasonLocal    = "local"
)

// Metrics groups every collector the server updates.
type Metrics struct {
	Registry prometheus.Registerer

	Accepted     prometheus.Counter
	AcceptErrors prometheus.Counter
	Active       prometheus.Gauge
	Closed       *prometheus.CounterVec
	Messages     prometheus.Counter
	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter
	PoolRejected prometheus.Counter
}

// NewMetrics registers the collectors on reg under namespace. A nil reg gets
// a private registry so several servers can coexist in one process.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "hioload_tcp"
	}
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted client connections",
		}),
		AcceptErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Total number of failed accept calls",
		}),
		Active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of registered client connections",
		}),
		Closed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of torn down connections by reason",
		}, []string{"reason"}),
		Messages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of framed messages delivered to the application",
		}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Total bytes read from client sockets",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total bytes written to client sockets",
		}),
		PoolRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_rejected_total",
			Help:      "Message tasks the business pool rejected and ran inline",
		}),
	}
}
