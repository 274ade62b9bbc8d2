package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/food-recommender/internal/core/domain"
	"github.com/kirillkom/food-recommender/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 300 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.executor.Execute(ctx, "ollama.embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyOllamaError)
	if err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Generator streams chat completions. Streaming runs outside the resilience
// executor: once chunks left for the consumer, a retry would replay the
// prefix, so failures surface mid-stream instead.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (g *Generator) StreamChat(
	ctx context.Context,
	history []domain.ConversationTurn,
	userMessage string,
	contextBlock string,
) (<-chan domain.GenerationChunk, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: buildSystemPrompt(contextBlock)})
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})

	reqBody := map[string]any{
		"model":    g.client.genModel,
		"messages": messages,
		"stream":   true,
	}

	resp, err := g.client.postStream(ctx, "/api/chat", reqBody, "chat")
	if err != nil {
		return nil, err
	}

	out := make(chan domain.GenerationChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var piece struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
				Done  bool   `json:"done"`
				Error string `json:"error"`
			}
			if err := json.Unmarshal([]byte(line), &piece); err != nil {
				sendChunk(ctx, out, domain.GenerationChunk{Err: fmt.Errorf("decode chat chunk: %w", err)})
				return
			}
			if piece.Error != "" {
				sendChunk(ctx, out, domain.GenerationChunk{Err: fmt.Errorf("ollama chat: %s", piece.Error)})
				return
			}
			if piece.Message.Content != "" {
				if !sendChunk(ctx, out, domain.GenerationChunk{Content: piece.Message.Content}) {
					return
				}
			}
			if piece.Done {
				sendChunk(ctx, out, domain.GenerationChunk{Done: true})
				return
			}
		}
		if err := scanner.Err(); err != nil {
			sendChunk(ctx, out, domain.GenerationChunk{Err: fmt.Errorf("read chat stream: %w", err)})
			return
		}
		// Body ended without a done marker; the connection was cut.
		sendChunk(ctx, out, domain.GenerationChunk{Err: fmt.Errorf("chat stream ended prematurely")})
	}()
	return out, nil
}

func sendChunk(ctx context.Context, out chan<- domain.GenerationChunk, chunk domain.GenerationChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
