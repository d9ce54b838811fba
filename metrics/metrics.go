// Package metrics exposes layout and server metrics through a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// Layout
	StepsTotal    *prometheus.CounterVec
	StepDuration  prometheus.Histogram
	StepErrors    prometheus.Counter
	GraphNodes    prometheus.Gauge
	GraphEdges    prometheus.Gauge
	KineticEnergy prometheus.Gauge

	// Driver
	FramesPublished  prometheus.Counter
	FramesDropped    prometheus.Counter
	CheckpointsTotal *prometheus.CounterVec

	// Server
	WebSocketClients prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initLayoutMetrics()
	r.initDriverMetrics()
	r.initServerMetrics()
	return r
}

func (r *Registry) initLayoutMetrics() {
	r.StepsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitegraph_layout_steps_total",
			Help: "Total number of layout steps applied",
		},
		[]string{"algorithm"},
	)

	r.StepDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitegraph_layout_step_duration_seconds",
			Help:    "Duration of one layout step in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	r.StepErrors = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "sitegraph_layout_step_errors_total",
			Help: "Total number of rejected layout steps",
		},
	)

	r.GraphNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "sitegraph_graph_nodes",
			Help: "Number of nodes in the graph being laid out",
		},
	)

	r.GraphEdges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "sitegraph_graph_edges",
			Help: "Number of edges in the graph being laid out",
		},
	)

	r.KineticEnergy = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "sitegraph_layout_kinetic_energy",
			Help: "Sum of squared node velocities after the latest step",
		},
	)
}

func (r *Registry) initDriverMetrics() {
	r.FramesPublished = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "sitegraph_frames_published_total",
			Help: "Total number of frames handed to subscribers",
		},
	)

	r.FramesDropped = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "sitegraph_frames_dropped_total",
			Help: "Total number of frames skipped because a subscriber was behind",
		},
	)

	r.CheckpointsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitegraph_checkpoints_total",
			Help: "Total number of checkpoints written",
		},
		[]string{"status"},
	)
}

func (r *Registry) initServerMetrics() {
	r.WebSocketClients = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "sitegraph_websocket_clients",
			Help: "Number of connected frame stream clients",
		},
	)

	r.HTTPRequests = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitegraph_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "status"},
	)
}

// RecordStep records one applied layout step
func (r *Registry) RecordStep(algorithm string, duration time.Duration, energy float64) {
	r.StepsTotal.WithLabelValues(algorithm).Inc()
	r.StepDuration.Observe(duration.Seconds())
	r.KineticEnergy.Set(energy)
}

// RecordStepError counts a step the layout rejected
func (r *Registry) RecordStepError() {
	r.StepErrors.Inc()
}

// SetGraphSize records the size of the current graph
func (r *Registry) SetGraphSize(nodes, edges int) {
	r.GraphNodes.Set(float64(nodes))
	r.GraphEdges.Set(float64(edges))
}

// RecordFrame counts one frame delivered or dropped
func (r *Registry) RecordFrame(delivered bool) {
	if delivered {
		r.FramesPublished.Inc()
	} else {
		r.FramesDropped.Inc()
	}
}

// RecordCheckpoint counts a checkpoint attempt
func (r *Registry) RecordCheckpoint(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.CheckpointsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest counts one request
func (r *Registry) RecordHTTPRequest(path string, status int) {
	r.HTTPRequests.WithLabelValues(path, http.StatusText(status)).Inc()
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
