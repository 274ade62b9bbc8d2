package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/food-recommender/internal/config"
	"github.com/kirillkom/food-recommender/internal/core/ports"
	"github.com/kirillkom/food-recommender/internal/core/usecase"
	"github.com/kirillkom/food-recommender/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/food-recommender/internal/infrastructure/queue/nats"
	"github.com/kirillkom/food-recommender/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/food-recommender/internal/infrastructure/resilience"
	"github.com/kirillkom/food-recommender/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Catalog  ports.CatalogStore
	Index    ports.SemanticIndex
	Sessions ports.ConversationStore

	IngestUC  ports.CatalogIngestor
	SearchUC  ports.FoodSearcher
	RespondUC ports.ChatResponder

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	catalog := postgres.NewCatalogRepository(db)
	if err := catalog.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	sessions := postgres.NewConversationRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)

	ingestUC := usecase.NewIngestCatalogUseCase(catalog, index, queue)
	searchUC := usecase.NewRetrievalUseCase(index, usecase.RetrievalConfig{
		OverfetchFactor: cfg.RetrievalOverfetch,
		CuisineBoost:    cfg.RetrievalCuisineBoost,
	})
	respondUC := usecase.NewRespondUseCase(searchUC, sessions, generator, usecase.RespondConfig{
		TopK:         cfg.ChatTopK,
		HistoryTurns: cfg.ChatHistoryTurns,
	})

	return &App{
		Config: cfg,

		Queue:    queue,
		Catalog:  catalog,
		Index:    index,
		Sessions: sessions,

		IngestUC:  ingestUC,
		SearchUC:  searchUC,
		RespondUC: respondUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
