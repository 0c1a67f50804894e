// Package metrics provides Prometheus metrics for the foldergate server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldergate_http_requests_total",
			Help: "Gateway HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foldergate_http_request_duration_seconds",
			Help:    "Gateway HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Engine metrics
	inboundEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldergate_inbound_events_total",
			Help: "Inbound front-end events by kind (text, file, action)",
		},
		[]string{"kind"},
	)

	secretAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldergate_secret_attempts_total",
			Help: "Submitted secrets by kind (admin, folder, direct) and result",
		},
		[]string{"kind", "result"},
	)

	// Session metrics
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foldergate_sessions_active",
			Help: "Number of sessions held in memory",
		},
	)

	sessionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foldergate_sessions_expired_total",
			Help: "Sessions removed by the idle sweep",
		},
	)

	// Credential store metrics
	credentialSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldergate_credential_saves_total",
			Help: "Credential file writes by result",
		},
		[]string{"status"},
	)

	// Provider metrics
	providerScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foldergate_provider_scan_duration_seconds",
			Help:    "Time to build a folder forest from the directory provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	treeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foldergate_tree_size",
			Help: "Number of folders in the most recently scanned forest",
		},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foldergate_upload_bytes_total",
			Help: "Total bytes uploaded through the directory provider",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldergate_uploads_total",
			Help: "Total number of uploads",
		},
		[]string{"status"},
	)

	providerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldergate_provider_operations_total",
			Help: "Directory provider backend operations",
		},
		[]string{"provider", "operation", "status"},
	)

	// Audit metrics
	auditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldergate_audit_events_total",
			Help: "Audit events published",
		},
		[]string{"type"},
	)

	auditSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foldergate_audit_subscribers",
			Help: "Number of connected audit stream subscribers",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordInboundEvent counts one event from the messaging front-end.
func RecordInboundEvent(kind string) {
	inboundEventsTotal.WithLabelValues(kind).Inc()
}

// RecordSecretAttempt records a password or code submission.
// Result is one of "success", "failure", "throttled".
func RecordSecretAttempt(kind, result string) {
	secretAttemptsTotal.WithLabelValues(kind, result).Inc()
}

// SetSessionsActive sets the live session count.
func SetSessionsActive(count int) {
	sessionsActive.Set(float64(count))
}

// RecordSessionsExpired adds n swept sessions.
func RecordSessionsExpired(n int) {
	sessionsExpiredTotal.Add(float64(n))
}

// RecordCredentialSave records a credential file write.
func RecordCredentialSave(success bool) {
	credentialSavesTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordProviderScan records a full forest scan.
func RecordProviderScan(provider string, duration time.Duration, folders int) {
	providerScanDuration.WithLabelValues(provider).Observe(duration.Seconds())
	treeSize.Set(float64(folders))
}

// RecordProviderOperation records a single backend call made by a provider.
func RecordProviderOperation(provider, operation string, success bool) {
	providerOperationsTotal.WithLabelValues(provider, operation, statusLabel(success)).Inc()
}

// RecordUpload records a file upload.
func RecordUpload(bytes int64, success bool) {
	uploadBytesTotal.Add(float64(bytes))
	uploadsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordAuditEvent counts a published audit event.
func RecordAuditEvent(eventType string) {
	auditEventsTotal.WithLabelValues(eventType).Inc()
}

// SetAuditSubscribers sets the number of audit stream subscribers.
func SetAuditSubscribers(count int) {
	auditSubscribers.Set(float64(count))
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.code = code
	sw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses streaming through the wrapper.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware counts and times every request by method, path and status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, sw.code, time.Since(start))
	})
}
