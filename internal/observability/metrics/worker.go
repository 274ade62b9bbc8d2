package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	batchTotal    *prometheus.CounterVec
	batchItems    *prometheus.HistogramVec
	batchInFlight prometheus.Gauge
	eventLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodrec",
			Subsystem: "worker",
			Name:      "catalog_batch_total",
			Help:      "Total observed catalog update batches by status.",
		},
		[]string{"service", "status"},
	)
	batchItems := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodrec",
			Subsystem: "worker",
			Name:      "catalog_batch_items",
			Help:      "Distribution of ingested items per catalog batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service"},
	)
	batchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "foodrec",
			Subsystem: "worker",
			Name:      "catalog_batch_in_flight",
			Help:      "Number of catalog batches being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodrec",
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between batch completion and event handling.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(batchTotal, batchItems, batchInFlight, eventLag)

	return &WorkerMetrics{
		registry:      registry,
		batchTotal:    batchTotal,
		batchItems:    batchItems,
		batchInFlight: batchInFlight,
		eventLag:      eventLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatch() {
	m.batchInFlight.Inc()
}

func (m *WorkerMetrics) FinishBatch(service string, items int, err error) {
	m.batchInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.batchTotal.WithLabelValues(service, status).Inc()
	if items > 0 {
		m.batchItems.WithLabelValues(service).Observe(float64(items))
	}
}

func (m *WorkerMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
}
