package metric

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "syncmesh"

// Registry holds all application metrics. It implements
// replication.Recorder.
type Registry struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive     prometheus.Gauge
	SessionsConnected  prometheus.Counter
	AuthoritiesHeld    prometheus.Gauge
	AuthorityTransfers prometheus.Counter

	// Command metrics
	CommandsSubmitted *prometheus.CounterVec
	CommandsResolved  *prometheus.CounterVec
	CommandLatency    *prometheus.HistogramVec
	PendingCommands   *prometheus.GaugeVec

	// Replication metrics
	Commits                prometheus.Counter
	NotificationsDelivered prometheus.Counter
	NotificationsDropped   prometheus.Counter

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with every metric registered, plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of connected sessions",
		}),
		SessionsConnected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connected_total",
			Help:      "Total sessions connected",
		}),
		AuthoritiesHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "authority",
			Name:      "held",
			Help:      "Number of fields with an authority",
		}),
		AuthorityTransfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authority",
			Name:      "claims_total",
			Help:      "Total authority claims",
		}),
		CommandsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "submitted_total",
			Help:      "Commands accepted into a queue",
		}, []string{"kind"}),
		CommandsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "resolved_total",
			Help:      "Commands resolved, by outcome code",
		}, []string{"kind", "code"}),
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "latency_seconds",
			Help:      "Time from issue to resolution",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"kind"}),
		PendingCommands: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "queue_depth",
			Help:      "Pending commands per field",
		}, []string{"field"}),
		Commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "field",
			Name:      "commits_total",
			Help:      "Version-changing commits",
		}),
		NotificationsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "notifications_total",
			Help:      "Notifications buffered for sessions",
		}),
		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "notifications_dropped_total",
			Help:      "Notifications discarded from full session outboxes",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SessionsActive,
		r.SessionsConnected,
		r.AuthoritiesHeld,
		r.AuthorityTransfers,
		r.CommandsSubmitted,
		r.CommandsResolved,
		r.CommandLatency,
		r.PendingCommands,
		r.Commits,
		r.NotificationsDelivered,
		r.NotificationsDropped,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns the /metrics handler of the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler exposing r in Prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registerer exposes the registry for additional collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the registry for tests and federation.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Registry) SessionConnected() {
	r.SessionsActive.Inc()
	r.SessionsConnected.Inc()
}

func (r *Registry) SessionDisconnected() { r.SessionsActive.Dec() }

func (r *Registry) AuthorityClaimed() {
	r.AuthoritiesHeld.Inc()
	r.AuthorityTransfers.Inc()
}

func (r *Registry) AuthorityReleased() { r.AuthoritiesHeld.Dec() }

func (r *Registry) CommandSubmitted(kind string) {
	r.CommandsSubmitted.WithLabelValues(kind).Inc()
}

func (r *Registry) CommandResolved(kind, code string, latency time.Duration) {
	r.CommandsResolved.WithLabelValues(kind, code).Inc()
	r.CommandLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

func (r *Registry) QueueDepth(fieldID string, depth int) {
	r.PendingCommands.WithLabelValues(fieldID).Set(float64(depth))
}

func (r *Registry) Committed() { r.Commits.Inc() }

func (r *Registry) NotificationDelivered() { r.NotificationsDelivered.Inc() }

func (r *Registry) NotificationDropped() { r.NotificationsDropped.Inc() }
