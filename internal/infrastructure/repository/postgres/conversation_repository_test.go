package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

func newConversationRepoWithMock(t *testing.T) (*ConversationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ConversationRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestAppendTurnRejectsUnknownRecommendation(t *testing.T) {
	repo, mock, done := newConversationRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost-food").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	turn := domain.ConversationTurn{
		ID:        "t1",
		SessionID: "s1",
		Role:      domain.RoleAssistant,
		Content:   "try this",
		Recommendations: []domain.Recommendation{
			{FoodID: "ghost-food", Name: "Ghost", Score: 0.5},
		},
	}
	err := repo.AppendTurn(context.Background(), turn)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendTurnPersistsAndBumpsSession(t *testing.T) {
	repo, mock, done := newConversationRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("dal-tadka").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO chat_turns").
		WithArgs("t1", "s1", "assistant", "try dal", sqlmock.AnyArg(), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE chat_sessions").
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	turn := domain.ConversationTurn{
		ID:         "t1",
		SessionID:  "s1",
		Role:       domain.RoleAssistant,
		Content:    "try dal",
		Incomplete: true,
		Recommendations: []domain.Recommendation{
			{FoodID: "dal-tadka", Name: "Dal Tadka", Score: 0.9},
		},
	}
	if err := repo.AppendTurn(context.Background(), turn); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListTurnsReturnsChronologicalOrder(t *testing.T) {
	repo, mock, done := newConversationRepoWithMock(t)
	defer done()

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "session_id", "role", "content", "recommendations", "incomplete", "created_at"}).
		AddRow("t2", "s1", "assistant", "second", []byte(`[]`), false, base.Add(time.Minute)).
		AddRow("t1", "s1", "user", "first", []byte(`[]`), false, base)
	mock.ExpectQuery("SELECT id, session_id, role").
		WithArgs("s1", 10).
		WillReturnRows(rows)

	turns, err := repo.ListTurns(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("ListTurns() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Content != "first" || turns[1].Content != "second" {
		t.Fatalf("expected chronological order, got %q then %q", turns[0].Content, turns[1].Content)
	}
}

func TestEnsureSessionInsertsThenSelects(t *testing.T) {
	repo, mock, done := newConversationRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO chat_sessions").
		WithArgs("s1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, user_id, title").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at", "updated_at"}).
			AddRow("s1", "u1", "", now, now))

	session, err := repo.EnsureSession(context.Background(), "u1", "s1")
	if err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}
	if session.ID != "s1" || session.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
