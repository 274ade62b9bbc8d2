package ports

import (
	"context"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

// CatalogStore is the authoritative structured store for food items.
// Upsert is whole-record replace keyed by id; there is no delete.
type CatalogStore interface {
	Upsert(ctx context.Context, item *domain.FoodItem) error
	GetByID(ctx context.Context, id string) (*domain.FoodItem, error)
	Count(ctx context.Context) (int, error)
}

// SemanticIndex is the derived searchable representation of the catalog,
// keyed by the same id space. Upserting an existing id replaces its prior
// document and metadata.
type SemanticIndex interface {
	Upsert(ctx context.Context, id, document string, metadata map[string]any) error
	Query(ctx context.Context, text string, topK int, filter domain.IndexFilter) ([]domain.IndexHit, error)
	Count(ctx context.Context) (int, error)
}

// Embedder builds vectors for documents and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChatModel is the generation capability: given conversation history, the
// new user message and a retrieval context block, it produces a lazy stream
// of text fragments. The returned channel closes after a Done or Err chunk.
type ChatModel interface {
	StreamChat(ctx context.Context, history []domain.ConversationTurn, userMessage, contextBlock string) (<-chan domain.GenerationChunk, error)
}

// ConversationStore persists chat sessions and turns.
type ConversationStore interface {
	EnsureSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error)
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) error
	ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error)
	ListSessions(ctx context.Context, userID string) ([]domain.ChatSession, error)
}

// CatalogEvents publishes/consumes catalog change notifications.
type CatalogEvents interface {
	PublishCatalogUpdated(ctx context.Context, event domain.CatalogUpdatedEvent) error
	SubscribeCatalogUpdated(ctx context.Context, handler func(context.Context, domain.CatalogUpdatedEvent) error) error
}
