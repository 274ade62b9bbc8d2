package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/food-recommender/internal/bootstrap"
	"github.com/kirillkom/food-recommender/internal/config"
	"github.com/kirillkom/food-recommender/internal/core/domain"
	"github.com/kirillkom/food-recommender/internal/observability/logging"
	"github.com/kirillkom/food-recommender/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeCatalogUpdated(ctx, func(handlerCtx context.Context, event domain.CatalogUpdatedEvent) error {
		workerMetrics.StartBatch()
		workerMetrics.ObserveEventLag(serviceName, time.Since(event.OccurredAt))

		err := auditBatch(handlerCtx, app, event)
		workerMetrics.FinishBatch(serviceName, event.Ingested, err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// auditBatch cross-checks both stores after a catalog update so a drifting
// index shows up in the worker logs before users notice stale search results.
func auditBatch(ctx context.Context, app *bootstrap.App, event domain.CatalogUpdatedEvent) error {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	catalogCount, err := app.Catalog.Count(checkCtx)
	if err != nil {
		return err
	}
	indexCount, err := app.Index.Count(checkCtx)
	if err != nil {
		return err
	}

	if catalogCount != indexCount {
		slog.Warn("catalog_index_drift",
			"batch_id", event.BatchID,
			"ingested", event.Ingested,
			"catalog_items", catalogCount,
			"indexed_items", indexCount,
		)
		return nil
	}

	slog.Info("catalog_batch_observed",
		"batch_id", event.BatchID,
		"ingested", event.Ingested,
		"catalog_items", catalogCount,
	)
	return nil
}
