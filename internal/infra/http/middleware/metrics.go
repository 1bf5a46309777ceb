package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	leadsEnrolled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_enrolled_total",
			Help: "Total number of new leads enrolled into a sequence",
		},
		[]string{"tier"},
	)

	stepsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_steps_dispatched_total",
			Help: "Total number of sequence steps sent",
		},
		[]string{"channel"},
	)

	deliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_failures_total",
			Help: "Total number of failed step deliveries",
		},
		[]string{"channel"},
	)

	crmSyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sync_errors_total",
			Help: "Total number of CRM sync failures",
		},
		[]string{"event"},
	)
)

// Metrics records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// DomainMetrics exposes the lifecycle counters to the use cases and the CRM
// worker.
type DomainMetrics struct{}

func (DomainMetrics) RecordEnrollment(tier string) {
	leadsEnrolled.WithLabelValues(tier).Inc()
}

func (DomainMetrics) RecordDispatch(channel string) {
	stepsDispatched.WithLabelValues(channel).Inc()
}

func (DomainMetrics) RecordDeliveryFailure(channel string) {
	deliveryFailures.WithLabelValues(channel).Inc()
}

func (DomainMetrics) RecordCRMSyncError(event string) {
	crmSyncErrors.WithLabelValues(event).Inc()
}
