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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hooktide_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hooktide_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hooktide_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	ingestedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hooktide_ingested_messages_total",
			Help: "Total number of webhook messages ingested",
		},
		[]string{"type"},
	)

	storageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hooktide_storage_operations_total",
			Help: "Total number of storage operations by backend and outcome",
		},
		[]string{"backend", "operation", "status"},
	)

	storageFailovers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hooktide_storage_failovers_total",
			Help: "Total number of operations retried against the fallback backend",
		},
		[]string{"operation"},
	)

	realtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hooktide_realtime_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	broadcastMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hooktide_broadcast_messages_total",
			Help: "Total number of frames broadcast to WebSocket clients",
		},
		[]string{"status"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func IncrementInFlight() {
	httpRequestsInFlight.Inc()
}

func DecrementInFlight() {
	httpRequestsInFlight.Dec()
}

func RecordIngestedMessage(msgType string) {
	ingestedMessages.WithLabelValues(msgType).Inc()
}

func RecordStorageOperation(backend, operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	storageOperations.WithLabelValues(backend, operation, status).Inc()
}

func RecordFailover(operation string) {
	storageFailovers.WithLabelValues(operation).Inc()
}

func UpdateRealtimeConnections(n int) {
	realtimeConnections.Set(float64(n))
}

func RecordBroadcast(sent, failed int) {
	if sent > 0 {
		broadcastMessages.WithLabelValues("sent").Add(float64(sent))
	}
	if failed > 0 {
		broadcastMessages.WithLabelValues("failed").Add(float64(failed))
	}
}
