package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/food-recommender/internal/adapters/http"
	"github.com/kirillkom/food-recommender/internal/bootstrap"
	"github.com/kirillkom/food-recommender/internal/config"
	"github.com/kirillkom/food-recommender/internal/infrastructure/loader"
	"github.com/kirillkom/food-recommender/internal/observability/logging"
	"github.com/kirillkom/food-recommender/internal/observability/metrics"
)

func main() {
	seedPath := flag.String("ingest", "", "catalog file (json/yaml/xlsx) to ingest on startup")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if *seedPath != "" {
		if err := seedCatalog(ctx, app, *seedPath); err != nil {
			slog.Error("seed_ingest_failed", "path", *seedPath, "error", err)
			os.Exit(1)
		}
	}

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.IngestUC,
		app.SearchUC,
		app.RespondUC,
		app.Catalog,
		app.Index,
		app.Sessions,
		serverMetrics,
		cfg,
	)

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}

func seedCatalog(ctx context.Context, app *bootstrap.App, path string) error {
	records, err := loader.Load(path)
	if err != nil {
		return err
	}
	ingested, err := app.IngestUC.Ingest(ctx, records)
	slog.Info("seed_ingest_done", "path", path, "ingested", ingested)
	return err
}
