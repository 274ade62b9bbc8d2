package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kirillkom/food-recommender/internal/core/domain"
	"github.com/kirillkom/food-recommender/internal/infrastructure/loader"
)

// ingestCatalog accepts either a JSON body {"items": [...]} or a multipart
// upload with a "file" field carrying a .json/.yaml/.xlsx catalog. Partial
// failures return 207 with the ingested count plus per-item errors.
func (rt *Router) ingestCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	records, err := rt.decodeIngestPayload(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(records) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no items to ingest"})
		return
	}

	ingested, err := rt.ingestUC.Ingest(r.Context(), records)

	var ingestErr *domain.IngestError
	switch {
	case err == nil:
		if rt.metrics != nil {
			rt.metrics.RecordIngestItems(serviceName, ingested, 0)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ingested": ingested})
	case errors.As(err, &ingestErr):
		if rt.metrics != nil {
			rt.metrics.RecordIngestItems(serviceName, ingested, len(ingestErr.Items))
		}
		failures := make([]map[string]string, 0, len(ingestErr.Items))
		for _, item := range ingestErr.Items {
			failures = append(failures, map[string]string{
				"item_id": item.ItemID,
				"stage":   item.Stage,
				"error":   item.Err.Error(),
			})
		}
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"ingested": ingested,
			"failures": failures,
		})
	default:
		writeError(w, err)
	}
}

func (rt *Router) decodeIngestPayload(r *http.Request) ([]domain.RawFoodRecord, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, fileHeader, err := r.FormFile("file")
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("multipart field 'file' is required"))
		}
		defer file.Close()
		return loader.Read(file, filepath.Ext(fileHeader.Filename))
	}

	var body struct {
		Items []domain.RawFoodRecord `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("invalid json"))
	}
	return body.Items, nil
}

func (rt *Router) getFoodByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/catalog/items/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "food id is required"})
		return
	}

	item, err := rt.catalog.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// catalogStats reports both store counts side by side; a mismatch means some
// items only made it into one store.
func (rt *Router) catalogStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	catalogCount, err := rt.catalog.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	indexCount, err := rt.index.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"catalog_items": catalogCount,
		"indexed_items": indexCount,
		"in_sync":       catalogCount == indexCount,
	})
}
