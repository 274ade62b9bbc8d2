package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

type searchRequest struct {
	Query  string                  `json:"query"`
	TopK   int                     `json:"top_k"`
	Filter domain.PreferenceFilter `json:"filter"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.TopK == 0 {
		req.TopK = 5
	}

	start := time.Now()
	results, err := rt.searchUC.Search(r.Context(), req.Query, req.Filter, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(serviceName, "/v1/search", len(results), time.Since(start))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": results,
	})
}
