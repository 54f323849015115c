// Package metrics exposes the gateway's Prometheus instruments. A Metrics
// value satisfies the observer interfaces of the session manager, the
// catalog and the engine, so one instance is threaded through all three.
package metrics

import (
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mcp_gateway"

type Metrics struct {
	liveSessions    prometheus.Gauge
	sessionsOpened  prometheus.Counter
	sessionsClosed  prometheus.Counter
	sessionLifetime prometheus.Histogram
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toolCalls       *prometheus.CounterVec
	adapterCalls    *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_live",
			Help:      "Number of sessions currently in the session table",
		}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Sessions created by a successful initialize",
		}),
		sessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Sessions removed from the session table",
		}),
		sessionLifetime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_lifetime_seconds",
			Help:      "Time between session creation and close",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600, 4 * 3600, 24 * 3600},
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "JSON-RPC requests handled, by method and outcome",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "Time spent handling a JSON-RPC request",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations, by tool and error kind (empty on success)",
		}, []string{"tool", "kind"}),
		adapterCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_calls_total",
			Help:      "Calls made to external services, by integration, operation and error kind",
		}, []string{"integration", "operation", "kind"}),
		adapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_call_duration_seconds",
			Help:      "Latency of calls made to external services",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"integration", "operation"}),
	}

	for _, c := range []prometheus.Collector{
		m.liveSessions, m.sessionsOpened, m.sessionsClosed, m.sessionLifetime,
		m.requests, m.requestDuration, m.toolCalls, m.adapterCalls, m.adapterDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) SessionOpened() {
	m.liveSessions.Inc()
	m.sessionsOpened.Inc()
}

func (m *Metrics) SessionClosed(lifetime time.Duration) {
	m.liveSessions.Dec()
	m.sessionsClosed.Inc()
	m.sessionLifetime.Observe(lifetime.Seconds())
}

func (m *Metrics) RequestHandled(method, outcome string, d time.Duration) {
	m.requests.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ToolCalled counts a tool invocation. kind is empty for a successful call.
func (m *Metrics) ToolCalled(tool string, kind integration.Kind) {
	m.toolCalls.WithLabelValues(tool, string(kind)).Inc()
}

func (m *Metrics) AdapterCall(n integration.Name, op string, d time.Duration, err error) {
	var kind integration.Kind
	if err != nil {
		kind = integration.KindOf(err)
	}
	m.adapterCalls.WithLabelValues(string(n), op, string(kind)).Inc()
	m.adapterDuration.WithLabelValues(string(n), op).Observe(d.Seconds())
}
