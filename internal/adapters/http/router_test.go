package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/food-recommender/internal/config"
	"github.com/kirillkom/food-recommender/internal/core/domain"
	"github.com/kirillkom/food-recommender/internal/observability/metrics"
)

type ingestorFake struct {
	ingested int
	err      error
	records  []domain.RawFoodRecord
}

func (f *ingestorFake) Ingest(_ context.Context, records []domain.RawFoodRecord) (int, error) {
	f.records = records
	return f.ingested, f.err
}

type searcherFake struct {
	results []domain.RetrievedCandidate
	err     error
}

func (f *searcherFake) Search(context.Context, string, domain.PreferenceFilter, int) ([]domain.RetrievedCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type responderFake struct {
	chunks []string
	status domain.StreamStatus
	err    error
}

func (f *responderFake) Respond(_ context.Context, req domain.ChatRequest) (*domain.ChatStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "session-1"
	}
	stream := domain.NewChatStream(sessionID, nil)
	go func() {
		for _, chunk := range f.chunks {
			if err := stream.Emit(context.Background(), chunk); err != nil {
				return
			}
		}
		stream.Close(f.status, nil)
	}()
	return stream, nil
}

type catalogStoreFake struct {
	items map[string]*domain.FoodItem
	count int
}

func (f *catalogStoreFake) Upsert(context.Context, *domain.FoodItem) error { return nil }

func (f *catalogStoreFake) GetByID(_ context.Context, id string) (*domain.FoodItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "catalog.get", errors.New(id))
	}
	return item, nil
}

func (f *catalogStoreFake) Count(context.Context) (int, error) { return f.count, nil }

type indexCountFake struct {
	count int
}

func (f *indexCountFake) Upsert(context.Context, string, string, map[string]any) error { return nil }

func (f *indexCountFake) Query(context.Context, string, int, domain.IndexFilter) ([]domain.IndexHit, error) {
	return nil, nil
}

func (f *indexCountFake) Count(context.Context) (int, error) { return f.count, nil }

type sessionStoreFake struct {
	sessions []domain.ChatSession
	turns    []domain.ConversationTurn
}

func (f *sessionStoreFake) EnsureSession(_ context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	return &domain.ChatSession{ID: sessionID, UserID: userID}, nil
}

func (f *sessionStoreFake) AppendTurn(context.Context, domain.ConversationTurn) error { return nil }

func (f *sessionStoreFake) ListTurns(context.Context, string, int) ([]domain.ConversationTurn, error) {
	return f.turns, nil
}

func (f *sessionStoreFake) ListSessions(context.Context, string) ([]domain.ChatSession, error) {
	return f.sessions, nil
}

func newTestRouter(ingest *ingestorFake, search *searcherFake, respond *responderFake, cfg config.Config) http.Handler {
	catalog := &catalogStoreFake{items: map[string]*domain.FoodItem{
		"dal-tadka": {ID: "dal-tadka", Name: "Dal Tadka"},
	}, count: 3}
	router := NewRouter(
		ingest,
		search,
		respond,
		catalog,
		&indexCountFake{count: 3},
		&sessionStoreFake{},
		metrics.NewHTTPServerMetrics(serviceName),
		cfg,
	)
	return router.Handler()
}

func TestIngestJSONReturnsCount(t *testing.T) {
	ingest := &ingestorFake{ingested: 2}
	handler := newTestRouter(ingest, &searcherFake{}, &responderFake{}, config.Config{})

	body := `{"items":[{"id":"a","name":"A","description":"x"},{"id":"b","name":"B","description":"y"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/catalog/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), `"ingested":2`) {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
	if len(ingest.records) != 2 {
		t.Fatalf("expected 2 records handed to the ingestor, got %d", len(ingest.records))
	}
}

func TestIngestPartialFailureReturnsMultiStatus(t *testing.T) {
	ingest := &ingestorFake{
		ingested: 1,
		err: &domain.IngestError{Items: []domain.IngestItemError{
			{ItemID: "b", Stage: domain.IngestStageIndex, Err: errors.New("index down")},
		}},
	}
	handler := newTestRouter(ingest, &searcherFake{}, &responderFake{}, config.Config{})

	body := `{"items":[{"id":"a","name":"A","description":"x"},{"id":"b","name":"B","description":"y"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/catalog/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"item_id":"b"`) {
		t.Fatalf("expected per-item failure detail, got %s", res.Body.String())
	}
}

func TestGetFoodByIDNotFoundMapsTo404(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, &responderFake{}, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/catalog/items/ghost", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSearchInvalidQueryMapsTo400(t *testing.T) {
	search := &searcherFake{err: domain.WrapError(domain.ErrInvalidQuery, "search", errors.New("query text is empty"))}
	handler := newTestRouter(&ingestorFake{}, search, &responderFake{}, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchUnavailableIndexMapsTo503(t *testing.T) {
	search := &searcherFake{err: domain.WrapError(domain.ErrStoreUnavailable, "index.query", errors.New("refused"))}
	handler := newTestRouter(&ingestorFake{}, search, &responderFake{}, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"dal"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestChatStreamsSSEFrames(t *testing.T) {
	respond := &responderFake{
		chunks: []string{"Try ", "dal."},
		status: domain.StreamCompleted,
	}
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, respond, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":"dinner?"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", got)
	}
	body := res.Body.String()
	if !strings.Contains(body, `event: message`) || !strings.Contains(body, `{"content":"Try "}`) {
		t.Fatalf("missing message frame: %s", body)
	}
	if !strings.Contains(body, `event: done`) || !strings.Contains(body, `"status":"completed"`) {
		t.Fatalf("missing done frame: %s", body)
	}
	if strings.Index(body, "Try ") > strings.Index(body, "dal.") {
		t.Fatalf("chunks out of order: %s", body)
	}
}

func TestChatEmptyMessageMapsTo400(t *testing.T) {
	respond := &responderFake{err: domain.WrapError(domain.ErrInvalidQuery, "respond", errors.New("message is empty"))}
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, respond, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"message":""}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, &responderFake{}, config.Config{
		APIRateLimitRPS:   1,
		APIRateLimitBurst: 1,
	})

	req1 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestCreateConversationAssignsSessionID(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, &responderFake{}, config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations", strings.NewReader(`{"user_id":"u1"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), `"user_id":"u1"`) {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
	if strings.Contains(res.Body.String(), `"id":""`) {
		t.Fatalf("expected an assigned session id, got %s", res.Body.String())
	}
}

func TestConversationMessagesRejectsBadLimit(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, &responderFake{}, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/s1/messages?limit=-3", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	handler := newTestRouter(&ingestorFake{}, &searcherFake{}, &responderFake{}, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}
