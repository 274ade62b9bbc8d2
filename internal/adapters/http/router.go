package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/kirillkom/food-recommender/internal/config"
	"github.com/kirillkom/food-recommender/internal/core/ports"
	"github.com/kirillkom/food-recommender/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	ingestUC  ports.CatalogIngestor
	searchUC  ports.FoodSearcher
	respondUC ports.ChatResponder
	catalog   ports.CatalogStore
	index     ports.SemanticIndex
	sessions  ports.ConversationStore
	metrics   *metrics.HTTPServerMetrics
	cfg       config.Config
}

func NewRouter(
	ingestUC ports.CatalogIngestor,
	searchUC ports.FoodSearcher,
	respondUC ports.ChatResponder,
	catalog ports.CatalogStore,
	index ports.SemanticIndex,
	sessions ports.ConversationStore,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg config.Config,
) *Router {
	return &Router{
		ingestUC:  ingestUC,
		searchUC:  searchUC,
		respondUC: respondUC,
		catalog:   catalog,
		index:     index,
		sessions:  sessions,
		metrics:   serverMetrics,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/catalog/ingest", rt.ingestCatalog)
	mux.HandleFunc("/v1/catalog/items/", rt.getFoodByID)
	mux.HandleFunc("/v1/catalog/stats", rt.catalogStats)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/chat", rt.chat)
	mux.HandleFunc("/v1/conversations", rt.conversations)
	mux.HandleFunc("/v1/conversations/", rt.conversationMessages)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
