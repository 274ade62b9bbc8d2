package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/food-recommender/internal/core/domain"
	"github.com/kirillkom/food-recommender/internal/infrastructure/resilience"
)

func newTestExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		MaxAttempts:    1,
		BreakerEnabled: false,
	})
}

func TestEmbedReturnsVectorPerInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic-embed-text", newTestExecutor())
	embedder := NewEmbedder(client)

	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestEmbedRejectsVectorCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic-embed-text", newTestExecutor())
	embedder := NewEmbedder(client)

	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error on vector count mismatch")
	}
}

func TestStreamChatDeliversChunksInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(
			`{"message":{"role":"assistant","content":"Try "},"done":false}` + "\n" +
				`{"message":{"role":"assistant","content":"dal."},"done":false}` + "\n" +
				`{"message":{"role":"assistant","content":""},"done":true}` + "\n",
		))
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic-embed-text", newTestExecutor())
	generator := NewGenerator(client)

	chunks, err := generator.StreamChat(context.Background(), nil, "dinner?", "- Dal Tadka: lentils")
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var text strings.Builder
	var sawDone bool
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("unexpected chunk error: %v", chunk.Err)
		}
		if chunk.Done {
			sawDone = true
			continue
		}
		text.WriteString(chunk.Content)
	}
	if text.String() != "Try dal." {
		t.Fatalf("unexpected streamed text %q", text.String())
	}
	if !sawDone {
		t.Fatal("expected a done chunk")
	}
}

func TestStreamChatSurfacesMidStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(
			`{"message":{"role":"assistant","content":"Sp"},"done":false}` + "\n" +
				`{"error":"model crashed"}` + "\n",
		))
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic-embed-text", newTestExecutor())
	generator := NewGenerator(client)

	chunks, err := generator.StreamChat(context.Background(), nil, "spicy?", "")
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var collected []domain.GenerationChunk
	for chunk := range chunks {
		collected = append(collected, chunk)
	}
	if len(collected) != 2 {
		t.Fatalf("expected content chunk then error chunk, got %+v", collected)
	}
	if collected[0].Content != "Sp" {
		t.Fatalf("prefix before the failure must be delivered, got %q", collected[0].Content)
	}
	if collected[1].Err == nil || !strings.Contains(collected[1].Err.Error(), "model crashed") {
		t.Fatalf("expected mid-stream error, got %v", collected[1].Err)
	}
}

func TestStreamChatTruncatedBodyReportsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"partial"},"done":false}` + "\n"))
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic-embed-text", newTestExecutor())
	generator := NewGenerator(client)

	chunks, err := generator.StreamChat(context.Background(), nil, "hi", "")
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var last domain.GenerationChunk
	for chunk := range chunks {
		last = chunk
	}
	if last.Err == nil {
		t.Fatal("a stream that ends without a done marker must report an error")
	}
}

func TestStreamChatRejectedBeforeStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic-embed-text", newTestExecutor())
	generator := NewGenerator(client)

	if _, err := generator.StreamChat(context.Background(), nil, "hi", ""); err == nil {
		t.Fatal("expected error when the request is rejected up front")
	}
}
