package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatstream_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatstream_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	MessagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatstream_messages_appended_total",
		Help: "Messages persisted to the store.",
	})

	StreamsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatstream_streams_started_total",
		Help: "Generation streams started.",
	})

	StreamsResumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatstream_streams_resumed_total",
		Help: "Resume subscriptions served.",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatstream_active_streams",
		Help: "Streams currently generating.",
	})

	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatstream_provider_requests_total",
		Help: "Outbound provider HTTP calls by host and status.",
	}, []string{"host", "status"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatstream_provider_request_duration_seconds",
		Help:    "Outbound provider call latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"host"})

	StoreDiskBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatstream_store_disk_bytes",
		Help: "Bytes used by the Pebble store on disk.",
	})

	RetentionSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatstream_retention_sweeps_total",
		Help: "Retention sweep runs.",
	})

	RetentionPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatstream_retention_records_total",
		Help: "Stream records marked stale or pruned by the sweeper.",
	}, []string{"action"})
)

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveProvider records one outbound provider call.
func ObserveProvider(host string, status int, d time.Duration) {
	ProviderRequests.WithLabelValues(host, strconv.Itoa(status)).Inc()
	ProviderLatency.WithLabelValues(host).Observe(d.Seconds())
}

// Middleware counts requests and latency per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		ObserveRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
