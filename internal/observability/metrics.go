package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/fieldsim/internal/plant"
)

// Metrics exports the plant and the HTTP API to Prometheus. It observes
// every cycle and wraps the router.
type Metrics struct {
	reg *prometheus.Registry

	cycles    prometheus.Counter
	simTime   prometheus.Gauge
	points    *prometheus.GaugeVec
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewMetrics registers on a private registry so several plants can coexist
// in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldsim_cycles_total",
			Help: "Plant cycles completed.",
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fieldsim_simulation_seconds",
			Help: "Simulation clock.",
		}),
		points: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fieldsim_point_value",
			Help: "Recorded point values after the last cycle. Booleans are 0 or 1.",
		}, []string{"point"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldsim_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fieldsim_http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.reg.MustRegister(m.cycles, m.simTime, m.points, m.requests, m.durations)
	return m
}

func (m *Metrics) OnCycle(s plant.Snapshot) {
	m.cycles.Inc()
	m.simTime.Set(s.Cycle.Now)
	for _, id := range plant.SeriesPoints {
		if v, ok := s.Value(id); ok {
			m.points.WithLabelValues(id).Set(v)
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware counts requests per route template, so /points/{id} is one
// series however many points are read.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		m.durations.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
