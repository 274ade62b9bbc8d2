package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalRequestsTotal *prometheus.CounterVec
	retrievalHitTotal      *prometheus.CounterVec
	retrievalNoMatchTotal  *prometheus.CounterVec
	retrievalCandidates    *prometheus.HistogramVec
	retrievalDuration      *prometheus.HistogramVec

	chatStreamsTotal   *prometheus.CounterVec
	chatStreamChunks   *prometheus.HistogramVec
	chatStreamDuration *prometheus.HistogramVec

	ingestItemsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodrec",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodrec",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "foodrec",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodrec",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total successful retrieval requests.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodrec",
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Total retrieval requests with at least one candidate.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalNoMatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodrec",
			Subsystem: "retrieval",
			Name:      "no_match_total",
			Help:      "Total retrieval requests with no surviving candidate.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodrec",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Distribution of returned candidates per retrieval request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodrec",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	chatStreamsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodrec",
			Subsystem: "chat",
			Name:      "streams_total",
			Help:      "Total chat streams by terminal status.",
		},
		[]string{"service", "status"},
	)
	chatStreamChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodrec",
			Subsystem: "chat",
			Name:      "stream_chunks",
			Help:      "Distribution of delivered chunks per chat stream.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	chatStreamDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodrec",
			Subsystem: "chat",
			Name:      "stream_duration_seconds",
			Help:      "Chat stream duration from start to terminal status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	ingestItemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodrec",
			Subsystem: "ingest",
			Name:      "items_total",
			Help:      "Total processed catalog items by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalRequestsTotal,
		retrievalHitTotal,
		retrievalNoMatchTotal,
		retrievalCandidates,
		retrievalDuration,
		chatStreamsTotal,
		chatStreamChunks,
		chatStreamDuration,
		ingestItemsTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		retrievalRequestsTotal: retrievalRequestsTotal,
		retrievalHitTotal:      retrievalHitTotal,
		retrievalNoMatchTotal:  retrievalNoMatchTotal,
		retrievalCandidates:    retrievalCandidates,
		retrievalDuration:      retrievalDuration,
		chatStreamsTotal:       chatStreamsTotal,
		chatStreamChunks:       chatStreamChunks,
		chatStreamDuration:     chatStreamDuration,
		ingestItemsTotal:       ingestItemsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/catalog/items/"):
		return "/v1/catalog/items/{food_id}"
	case strings.HasPrefix(path, "/v1/conversations/") && strings.HasSuffix(path, "/messages"):
		return "/v1/conversations/{session_id}/messages"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint string, candidates int, duration time.Duration) {
	m.retrievalRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.retrievalCandidates.WithLabelValues(service, endpoint).Observe(float64(candidates))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if candidates > 0 {
		m.retrievalHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.retrievalNoMatchTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordChatStream(service, status string, chunks int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.chatStreamsTotal.WithLabelValues(service, status).Inc()
	m.chatStreamChunks.WithLabelValues(service).Observe(float64(chunks))
	m.chatStreamDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordIngestItems(service string, succeeded, failed int) {
	if succeeded > 0 {
		m.ingestItemsTotal.WithLabelValues(service, "success").Add(float64(succeeded))
	}
	if failed > 0 {
		m.ingestItemsTotal.WithLabelValues(service, "failure").Add(float64(failed))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
