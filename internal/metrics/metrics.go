package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_order_operations_total",
			Help: "Order lifecycle operations by outcome",
		},
		[]string{"operation", "result"},
	)

	stockOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_stock_operations_total",
			Help: "Inventory ledger reserve/release calls by outcome",
		},
		[]string{"operation", "result"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_events_published_total",
			Help: "Order events written to the broker by outcome",
		},
		[]string{"topic", "result"},
	)
)

// OrderOperation records one lifecycle call; result is a short error class
// ("ok", "insufficient_stock", ...).
func OrderOperation(operation, result string) {
	orderOperations.WithLabelValues(operation, result).Inc()
}

func StockOperation(operation, result string) {
	stockOperations.WithLabelValues(operation, result).Inc()
}

// EventPublished records a producer outcome: "ok", "error" or "dropped".
func EventPublished(topic, result string) {
	eventsPublished.WithLabelValues(topic, result).Inc()
}

// Middleware labels requests by chi route pattern so IDs don't blow up
// cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		status := strconv.Itoa(code)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler { return promhttp.Handler() }
