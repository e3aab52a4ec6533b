package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surfsup_http_requests_total",
		Help: "Total number of HTTP requests by route pattern and status code.",
	}, []string{"route", "code"})

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surfsup_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	DBSessionsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "surfsup_db_sessions_open",
		Help: "Store sessions currently holding a pooled connection.",
	})

	DBQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surfsup_db_queries_total",
		Help: "Store queries by name and outcome.",
	}, []string{"query", "outcome"})

	registerOnce sync.Once
)

// Register adds the collectors to the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			DBSessionsOpen,
			DBQueriesTotal,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

func ObserveRequest(route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(route).Observe(d.Seconds())
}

func SessionOpened() { DBSessionsOpen.Inc() }

func SessionClosed() { DBSessionsOpen.Dec() }

func ObserveQuery(name string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DBQueriesTotal.WithLabelValues(name, outcome).Inc()
}
