// Package metrics exposes Prometheus counters for the dev loop: rebuilds per
// pipeline, child process lifecycle, reload broadcasts, and connected preview
// clients.
//
// All recording methods are safe to call on a nil *Metrics, so components can
// be built and tested without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tandem"

// Metrics holds every collector registered by tandem.
type Metrics struct {
	registry *prometheus.Registry

	rebuilds          *prometheus.CounterVec
	rebuildDuration   *prometheus.HistogramVec
	childSpawns       *prometheus.CounterVec
	childTerminations *prometheus.CounterVec
	broadcasts        *prometheus.CounterVec
	clients           prometheus.Gauge
}

// New creates a Metrics instance backed by its own registry. Go runtime and
// process collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "Pipeline builds by pipeline and result.",
		}, []string{"pipeline", "result"}),
		rebuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Wall time of pipeline builds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"pipeline"}),
		childSpawns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "child_spawns_total",
			Help:      "Child processes started by owner.",
		}, []string{"owner"}),
		childTerminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "child_terminations_total",
			Help:      "Child processes stopped by the supervisor, by owner and whether a kill was forced.",
		}, []string{"owner", "forced"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Messages broadcast to preview clients by type.",
		}, []string{"type"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preview_clients",
			Help:      "Currently connected preview clients.",
		}),
	}

	m.registry.MustRegister(
		m.rebuilds,
		m.rebuildDuration,
		m.childSpawns,
		m.childTerminations,
		m.broadcasts,
		m.clients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry, for health checks or tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBuild records one pipeline build.
func (m *Metrics) ObserveBuild(pipeline string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.rebuilds.WithLabelValues(pipeline, result).Inc()
	m.rebuildDuration.WithLabelValues(pipeline).Observe(d.Seconds())
}

// ChildSpawned records a child process start.
func (m *Metrics) ChildSpawned(owner string) {
	if m == nil {
		return
	}
	m.childSpawns.WithLabelValues(owner).Inc()
}

// ChildTerminated records the supervisor stopping a child.
func (m *Metrics) ChildTerminated(owner string, forced bool) {
	if m == nil {
		return
	}
	label := "false"
	if forced {
		label = "true"
	}
	m.childTerminations.WithLabelValues(owner, label).Inc()
}

// Broadcast records a message sent to preview clients.
func (m *Metrics) Broadcast(kind string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(kind).Inc()
}

// SetClients sets the connected preview client gauge.
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}
