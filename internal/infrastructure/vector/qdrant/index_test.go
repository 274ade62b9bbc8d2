package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

type embedderStub struct {
	vector []float32
}

func (e *embedderStub) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector
	}
	return out, nil
}

func (e *embedderStub) EmbedQuery(context.Context, string) ([]float32, error) {
	return e.vector, nil
}

func TestUpsertEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/foods":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/foods/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	index := New(server.URL, "foods", &embedderStub{vector: []float32{0.1, 0.2}})
	metadata := map[string]any{"name": "Dal Tadka"}

	if err := index.Upsert(context.Background(), "dal-tadka", "Dal Tadka: lentils", metadata); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if err := index.Upsert(context.Background(), "dal-tadka", "Dal Tadka: lentils", metadata); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestUpsertUsesDeterministicPointID(t *testing.T) {
	var pointIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/foods":
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/foods/points":
			var body struct {
				Points []struct {
					ID string `json:"id"`
				} `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			for _, p := range body.Points {
				pointIDs = append(pointIDs, p.ID)
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	index := New(server.URL, "foods", &embedderStub{vector: []float32{0.1, 0.2}})
	if err := index.Upsert(context.Background(), "dal-tadka", "doc v1", nil); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := index.Upsert(context.Background(), "dal-tadka", "doc v2", nil); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(pointIDs) != 2 || pointIDs[0] != pointIDs[1] {
		t.Fatalf("re-ingest must target the same point, got %v", pointIDs)
	}
}

func TestQueryBuildsFilterAndParsesHits(t *testing.T) {
	var gotFilter map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/foods/points/search" {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotFilter, _ = body["filter"].(map[string]any)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":[
				{"score":0.91,"payload":{"food_id":"dal-tadka","name":"Dal Tadka","document":"Dal Tadka: lentils"}},
				{"score":0.75,"payload":{"food_id":"aloo-gobi","name":"Aloo Gobi","document":"Aloo Gobi: potato"}}
			]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	index := New(server.URL, "foods", &embedderStub{vector: []float32{0.1, 0.2}})
	filter := domain.IndexFilter{
		ExcludeAllergens: []string{"dairy"},
		DietType:         "vegan",
		MaxSpiceRank:     1,
	}
	hits, err := index.Query(context.Background(), "lentils", 5, filter)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "dal-tadka" || hits[0].Score != 0.91 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if hits[0].Snippet != "Dal Tadka: lentils" {
		t.Fatalf("unexpected snippet: %q", hits[0].Snippet)
	}
	if gotFilter == nil {
		t.Fatal("expected a filter in the search request")
	}
	if _, ok := gotFilter["must_not"]; !ok {
		t.Fatalf("expected allergen must_not clause, got %v", gotFilter)
	}
	if _, ok := gotFilter["must"]; !ok {
		t.Fatalf("expected diet/spice must clauses, got %v", gotFilter)
	}
}

func TestQueryNoConstraintsSendsNoFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["filter"]; ok {
			t.Errorf("unconstrained query must not send a filter: %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	index := New(server.URL, "foods", &embedderStub{vector: []float32{0.1}})
	if _, err := index.Query(context.Background(), "anything", 3, domain.IndexFilter{MaxSpiceRank: -1}); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/foods" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	index := New(server.URL, "foods", &embedderStub{vector: []float32{0.1, 0.2}})
	err := index.Upsert(context.Background(), "x", "doc", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestCountParsesExactTotal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/foods/points/count" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":{"count":17}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	index := New(server.URL, "foods", &embedderStub{vector: []float32{0.1}})
	count, err := index.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 17 {
		t.Fatalf("expected 17, got %d", count)
	}
}
