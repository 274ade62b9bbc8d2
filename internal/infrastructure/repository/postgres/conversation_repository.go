package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) EnsureSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at)
VALUES ($1, $2, '', $3, $3)
ON CONFLICT (id) DO NOTHING
`, sessionID, userID, now)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "session.ensure", err)
	}

	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, title, created_at, updated_at
FROM chat_sessions
WHERE id = $1
`, sessionID)

	var session domain.ChatSession
	if err := row.Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, fmt.Errorf("ensure session select: %w", err)
	}
	return &session, nil
}

// AppendTurn stores one turn and bumps the session's updated_at. Assistant
// recommendations are checked against the foods table so a turn can never
// cite an id the catalog does not hold.
func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	for _, rec := range turn.Recommendations {
		var exists bool
		err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM foods WHERE id = $1)`, rec.FoodID).Scan(&exists)
		if err != nil {
			return domain.WrapError(domain.ErrStoreUnavailable, "turn.append", err)
		}
		if !exists {
			return domain.WrapError(domain.ErrNotFound, "turn.append", fmt.Errorf("recommended food %s", rec.FoodID))
		}
	}

	recsJSON, err := json.Marshal(turn.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_turns (id, session_id, role, content, recommendations, incomplete, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, turn.ID, turn.SessionID, string(turn.Role), turn.Content, recsJSON, turn.Incomplete, turn.CreatedAt)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "turn.append", err)
	}

	_, err = r.db.ExecContext(ctx, `
UPDATE chat_sessions SET updated_at = $2 WHERE id = $1
`, turn.SessionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("bump session: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, role, content, recommendations, incomplete, created_at
FROM chat_turns
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "turn.list", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0, limit)
	for rows.Next() {
		var turn domain.ConversationTurn
		var role string
		var recsRaw []byte
		if err := rows.Scan(&turn.ID, &turn.SessionID, &role, &turn.Content, &recsRaw, &turn.Incomplete, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if err := json.Unmarshal(recsRaw, &turn.Recommendations); err != nil {
			return nil, fmt.Errorf("unmarshal recommendations: %w", err)
		}
		turn.Role = domain.TurnRole(role)
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *ConversationRepository) ListSessions(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, title, created_at, updated_at
FROM chat_sessions
WHERE user_id = $1
ORDER BY updated_at DESC
`, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "session.list", err)
	}
	defer rows.Close()

	out := make([]domain.ChatSession, 0)
	for rows.Next() {
		var session domain.ChatSession
		if err := rows.Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
