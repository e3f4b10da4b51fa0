// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics.
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aas_http_requests_total",
			Help: "Total HTTP requests by handler, method, route and status.",
		},
		[]string{"handler", "method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aas_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method", "route"},
	)

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aas_http_requests_in_flight",
		Help: "HTTP requests currently being served.",
	})
)

// Business metrics.
var (
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aas_orders_placed_total",
		Help: "Orders successfully submitted.",
	})

	OrderStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aas_order_status_changes_total",
		Help: "Order status changes by target status.",
	}, []string{"status"})

	DocumentsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aas_documents_uploaded_total",
		Help: "Identity documents stored.",
	})

	DocumentsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aas_documents_rejected_total",
		Help: "Document uploads rejected before storage, by reason.",
	}, []string{"reason"})

	DocumentsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aas_documents_deleted_total",
		Help: "Identity documents deleted.",
	})

	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aas_admin_gate_decisions_total",
		Help: "Admin gate decisions by result.",
	}, []string{"result"})

	GateCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aas_admin_gate_cache_hits_total",
		Help: "Admin gate decisions served from cache.",
	})

	GateCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aas_admin_gate_cache_misses_total",
		Help: "Admin gate decisions that required a profile lookup.",
	})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware records request metrics for a chi router. The route label is
// the matched chi pattern, read after routing, so path parameters do not
// inflate cardinality.
func Middleware(handler string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			httpRequestsTotal.WithLabelValues(handler, r.Method, route, strconv.Itoa(sw.status)).Inc()
			httpRequestDuration.WithLabelValues(handler, r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
