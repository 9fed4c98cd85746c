package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/richdadretirement/leadrelay/internal/entity"
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

	clicksTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clicks_tracked_total",
			Help: "Affiliate clicks redirected through the tracking endpoint",
		},
		[]string{"traffic"},
	)

	clicksRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clicks_rejected_total",
			Help: "Tracking requests sent to the fallback because the destination was invalid",
		},
	)

	postbacksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postbacks_received_total",
			Help: "Partner postbacks received by event type",
		},
		[]string{"type", "duplicate"},
	)

	leadStatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_status_updates_total",
			Help: "Lead status writes triggered by postbacks",
		},
		[]string{"status", "result"},
	)

	leadsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_captured_total",
			Help: "Lead form submissions by outcome",
		},
		[]string{"result"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notification channel sends by outcome",
		},
		[]string{"channel", "result"},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern keeps label cardinality bounded for unmatched paths.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// RecordClick takes only the normalised traffic type; source is free text
// from the query string and stays in the notification, not in a label.
func RecordClick(traffic entity.TrafficType) {
	clicksTracked.WithLabelValues(string(traffic)).Inc()
}

func RecordClickRejected() {
	clicksRejected.Inc()
}

func RecordPostback(eventType string, duplicate bool) {
	postbacksReceived.WithLabelValues(eventType, strconv.FormatBool(duplicate)).Inc()
}

func RecordLeadStatusUpdate(status, result string) {
	leadStatusUpdates.WithLabelValues(status, result).Inc()
}

func RecordLeadCaptured(result string) {
	leadsCaptured.WithLabelValues(result).Inc()
}

// RecordNotification matches notification.Dispatcher.OnResult.
func RecordNotification(channel string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		integrationErrors.WithLabelValues(channel).Inc()
	}
	notificationsSent.WithLabelValues(channel, result).Inc()
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
