package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/banshee-data/gridpath/internal/grid"
)

// Metrics holds the request instrumentation for a Listener.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	sessions     prometheus.Gauge
	frameErrors  *prometheus.CounterVec
	poolInFlight prometheus.Gauge
}

// NewMetrics registers the server metrics with reg. A nil reg uses a private
// registry, which keeps tests from colliding on the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridpath_requests_total",
			Help: "Requests answered, by kind and response status.",
		}, []string{"kind", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridpath_request_duration_seconds",
			Help:    "Time from dispatch to result, by kind.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gridpath_sessions_active",
			Help: "Client sessions currently open.",
		}),
		frameErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridpath_frame_errors_total",
			Help: "Sessions ended by a framing error, by reason.",
		}, []string{"reason"}),
		poolInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gridpath_worker_pool_in_flight",
			Help: "Requests currently holding a worker permit.",
		}),
	}
}

// RegisterGridCollectors exposes the size of store as gauges evaluated at
// scrape time.
func RegisterGridCollectors(reg prometheus.Registerer, store *grid.Store) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gridpath_cells",
		Help: "Cells currently in the grid.",
	}, func() float64 { return float64(store.Len()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gridpath_edges",
		Help: "Directed edges currently in the grid.",
	}, func() float64 { return float64(store.EdgeCount()) })
}

func (m *Metrics) observe(kind grid.Kind, status string, elapsed time.Duration) {
	k := string(kind)
	if k == "" {
		k = "unknown"
	}
	m.requests.WithLabelValues(k, status).Inc()
	m.duration.WithLabelValues(k).Observe(elapsed.Seconds())
}
