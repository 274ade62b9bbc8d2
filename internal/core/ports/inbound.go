package ports

import (
	"context"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

// CatalogIngestor is the inbound contract for catalog batch ingestion.
// The returned count is the number of items committed to both stores.
type CatalogIngestor interface {
	Ingest(ctx context.Context, records []domain.RawFoodRecord) (int, error)
}

// FoodSearcher is the inbound contract for filtered semantic retrieval.
type FoodSearcher interface {
	Search(ctx context.Context, query string, filter domain.PreferenceFilter, topK int) ([]domain.RetrievedCandidate, error)
}

// ChatResponder drives one conversational turn end to end and streams the
// generated answer.
type ChatResponder interface {
	Respond(ctx context.Context, req domain.ChatRequest) (*domain.ChatStream, error)
}
