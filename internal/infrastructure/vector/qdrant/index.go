package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/food-recommender/internal/core/domain"
	"github.com/kirillkom/food-recommender/internal/core/ports"
)

// Index implements the semantic index on a qdrant collection. Text goes in,
// vectors never leave this package: the embedder is composed here so every
// caller derives vectors the same way.
type Index struct {
	baseURL    string
	collection string
	embedder   ports.Embedder
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, embedder ports.Embedder) *Index {
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upsert embeds the document and replaces the point for this id. Point ids
// are derived deterministically from the food id so re-ingesting an item
// overwrites its previous vector instead of accumulating duplicates.
func (c *Index) Upsert(ctx context.Context, id, document string, metadata map[string]any) error {
	vectors, err := c.embedder.Embed(ctx, []string{document})
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("embedder returned %d vectors for one document", len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	payload := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		payload[k] = v
	}
	payload["food_id"] = id
	payload["document"] = document

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	reqBody := map[string]any{
		"points": []point{{
			ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(),
			Vector:  vectors[0],
			Payload: payload,
		}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "index.upsert", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.WrapError(domain.ErrStoreUnavailable, "index.upsert", fmt.Errorf("qdrant status: %s", resp.Status))
	}
	return nil
}

func (c *Index) Query(ctx context.Context, text string, topK int, filter domain.IndexFilter) ([]domain.IndexHit, error) {
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if qdrantFilter := buildFilter(filter); qdrantFilter != nil {
		reqBody["filter"] = qdrantFilter
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "index.query", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "index.query", fmt.Errorf("qdrant status: %s", resp.Status))
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.IndexHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.IndexHit{
			ID:       getStringPayload(r.Payload, "food_id"),
			Score:    r.Score,
			Metadata: r.Payload,
			Snippet:  getStringPayload(r.Payload, "document"),
		})
	}

	// Qdrant returns by score already; the id tiebreak keeps equal-score
	// results deterministic across calls.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *Index) Count(ctx context.Context) (int, error) {
	body, err := json.Marshal(map[string]any{"exact": true})
	if err != nil {
		return 0, fmt.Errorf("marshal count body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create count request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, domain.WrapError(domain.ErrStoreUnavailable, "index.count", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return 0, domain.WrapError(domain.ErrStoreUnavailable, "index.count", fmt.Errorf("qdrant status: %s", resp.Status))
	}

	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return countResp.Result.Count, nil
}

// buildFilter translates preference constraints into a qdrant filter. The
// post-query pass in the retrieval engine applies the same rules, so an item
// a stale payload lets through here is still dropped there.
func buildFilter(filter domain.IndexFilter) map[string]any {
	var must []map[string]any
	var mustNot []map[string]any

	for _, allergen := range filter.ExcludeAllergens {
		allergen = strings.ToLower(strings.TrimSpace(allergen))
		if allergen == "" {
			continue
		}
		mustNot = append(mustNot, map[string]any{
			"key":   "allergens",
			"match": map[string]any{"value": allergen},
		})
	}
	if filter.DietType != "" {
		must = append(must, map[string]any{
			"key":   "diets",
			"match": map[string]any{"value": filter.DietType},
		})
	}
	if filter.MaxSpiceRank >= 0 {
		must = append(must, map[string]any{
			"key":   "spice_rank",
			"range": map[string]any{"lte": filter.MaxSpiceRank},
		})
	}

	if len(must) == 0 && len(mustNot) == 0 {
		return nil
	}
	out := map[string]any{}
	if len(must) > 0 {
		out["must"] = must
	}
	if len(mustNot) > 0 {
		out["must_not"] = mustNot
	}
	return out
}

func (c *Index) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "index.ensure", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Index) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
