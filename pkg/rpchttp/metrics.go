package rpchttp

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sentinel-Gate/rpcgate/pkg/jsonrpc"
)

// Metrics holds the Prometheus metrics of a server.
// A nil *Metrics records nothing.
type Metrics struct {
	ConnectionsTotal    prometheus.Counter
	ActiveConnections   prometheus.Gauge
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     prometheus.Histogram
	CallsTotal          *prometheus.CounterVec
	CallDuration        prometheus.Histogram
	AdmissionRejections *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "rpcgate",
				Name:      "connections_total",
				Help:      "Total number of accepted connections",
			},
		),
		ActiveConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rpcgate",
				Name:      "active_connections",
				Help:      "Number of connections being served",
			},
		),
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rpcgate",
				Name:      "requests_total",
				Help:      "Total number of HTTP responses written",
			},
			[]string{"status"}, // status=200/403/405/415/...
		),
		RequestDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rpcgate",
				Name:      "request_duration_seconds",
				Help:      "Time from accepting a connection to writing its response",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rpcgate",
				Name:      "calls_total",
				Help:      "Total number of dispatched JSON-RPC calls",
			},
			[]string{"outcome"}, // outcome=success/error/suppressed
		),
		CallDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rpcgate",
				Name:      "call_duration_seconds",
				Help:      "JSON-RPC call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		AdmissionRejections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rpcgate",
				Name:      "admission_rejections_total",
				Help:      "Requests rejected before reaching the JSON-RPC layer",
			},
			[]string{"reason"}, // reason=host/method/content_type/malformed/body_too_large
		),
	}
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ActiveConnections.Inc()
}

func (m *Metrics) connClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) observeRequest(status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeRejection(reason string) {
	if m == nil {
		return
	}
	m.AdmissionRejections.WithLabelValues(reason).Inc()
}

// observeCall is the dispatcher's call observer.
func (m *Metrics) observeCall(_ string, kind jsonrpc.OutcomeKind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(kind.String()).Inc()
	m.CallDuration.Observe(elapsed.Seconds())
}
