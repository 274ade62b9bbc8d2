package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/food-recommender/internal/core/domain"
	"github.com/kirillkom/food-recommender/internal/core/ports"
)

const defaultChatTopK = 6

// RespondConfig tunes the chat orchestration.
type RespondConfig struct {
	TopK         int
	HistoryTurns int
}

// RespondUseCase grounds a chat reply in retrieved catalog items and streams
// the generated answer while persisting both sides of the exchange.
type RespondUseCase struct {
	searcher      ports.FoodSearcher
	conversations ports.ConversationStore
	chat          ports.ChatModel
	cfg           RespondConfig
}

func NewRespondUseCase(
	searcher ports.FoodSearcher,
	conversations ports.ConversationStore,
	chat ports.ChatModel,
	cfg RespondConfig,
) *RespondUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultChatTopK
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 20
	}
	return &RespondUseCase{
		searcher:      searcher,
		conversations: conversations,
		chat:          chat,
		cfg:           cfg,
	}
}

// Respond validates the request, persists the user turn, retrieves grounding
// candidates and starts the generation stream. Chunks are delivered through
// the returned ChatStream in generation order; the assistant turn is persisted
// exactly once when the stream ends, marked incomplete if generation was cut
// short.
func (uc *RespondUseCase) Respond(ctx context.Context, req domain.ChatRequest) (*domain.ChatStream, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidQuery, "respond", fmt.Errorf("message is empty"))
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if _, err := uc.conversations.EnsureSession(ctx, req.UserID, sessionID); err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	history := req.History
	if history == nil {
		stored, err := uc.conversations.ListTurns(ctx, sessionID, uc.cfg.HistoryTurns)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		history = stored
	}

	userTurn := domain.ConversationTurn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.conversations.AppendTurn(ctx, userTurn); err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}

	candidates, err := uc.searcher.Search(ctx, message, req.Filter, uc.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}

	chunks, err := uc.chat.StreamChat(ctx, history, message, renderContextBlock(candidates))
	if err != nil {
		return nil, fmt.Errorf("start generation: %w", err)
	}

	stream := domain.NewChatStream(sessionID, candidates)
	go uc.pump(ctx, stream, chunks, sessionID, candidates)
	return stream, nil
}

// pump relays generation chunks into the stream and persists the assistant
// turn on exit. Only chunks the consumer actually received are persisted, so
// the stored turn never runs ahead of what was delivered.
func (uc *RespondUseCase) pump(
	ctx context.Context,
	stream *domain.ChatStream,
	chunks <-chan domain.GenerationChunk,
	sessionID string,
	candidates []domain.RetrievedCandidate,
) {
	var builder strings.Builder
	var streamErr error
	status := domain.StreamCompleted

	for chunk := range chunks {
		if chunk.Err != nil {
			status = domain.StreamInterrupted
			streamErr = domain.WrapError(domain.ErrGenerationInterrupted, "respond", chunk.Err)
			break
		}
		if chunk.Content != "" {
			if err := stream.Emit(ctx, chunk.Content); err != nil {
				status = domain.StreamInterrupted
				streamErr = domain.WrapError(domain.ErrGenerationInterrupted, "respond", err)
				break
			}
			builder.WriteString(chunk.Content)
		}
		if chunk.Done {
			break
		}
	}
	if streamErr == nil && ctx.Err() != nil {
		status = domain.StreamInterrupted
		streamErr = domain.WrapError(domain.ErrGenerationInterrupted, "respond", ctx.Err())
	}
	// Release the producer goroutine if we stopped reading early.
	go func() {
		for range chunks {
		}
	}()

	uc.persistAssistantTurn(ctx, sessionID, builder.String(), candidates, status == domain.StreamInterrupted)
	stream.Close(status, streamErr)
}

func (uc *RespondUseCase) persistAssistantTurn(
	ctx context.Context,
	sessionID, content string,
	candidates []domain.RetrievedCandidate,
	incomplete bool,
) {
	recommendations := make([]domain.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		recommendations = append(recommendations, domain.Recommendation{
			FoodID: c.ID,
			Name:   c.Name,
			Score:  c.Score,
		})
	}
	turn := domain.ConversationTurn{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		Role:            domain.RoleAssistant,
		Content:         content,
		Recommendations: recommendations,
		Incomplete:      incomplete,
		CreatedAt:       time.Now().UTC(),
	}
	// Persistence must survive a cancelled request context.
	if err := uc.conversations.AppendTurn(context.WithoutCancel(ctx), turn); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("assistant turn not persisted", "session_id", sessionID, "error", err)
		}
	}
}

// renderContextBlock formats retrieved candidates for the generation prompt,
// one line per item.
func renderContextBlock(candidates []domain.RetrievedCandidate) string {
	if len(candidates) == 0 {
		return ""
	}
	var builder strings.Builder
	for _, c := range candidates {
		builder.WriteString("- ")
		builder.WriteString(c.Name)
		builder.WriteString(": ")
		builder.WriteString(c.Snippet)
		builder.WriteString("\n")
	}
	return strings.TrimRight(builder.String(), "\n")
}
