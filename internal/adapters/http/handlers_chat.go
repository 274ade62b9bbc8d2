package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/food-recommender/internal/core/domain"
)

type chatRequest struct {
	UserID    string                  `json:"user_id"`
	SessionID string                  `json:"session_id"`
	Message   string                  `json:"message"`
	Filter    domain.PreferenceFilter `json:"filter"`
}

// chat streams the assistant reply over SSE. Each text fragment arrives as
// an "event: message" frame; the terminal "event: done" frame carries the
// stream status so clients can tell a completed reply from a cut one.
func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	stream, err := rt.respondUC.Respond(r.Context(), domain.ChatRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Message:   req.Message,
		Filter:    req.Filter,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writer, err := newSSEWriter(w)
	if err != nil {
		writeError(w, err)
		return
	}
	writer.WriteEvent("session", map[string]string{"session_id": stream.SessionID})

	chunkCount := 0
	for chunk := range stream.Chunks() {
		writer.WriteEvent("message", map[string]string{"content": chunk})
		chunkCount++
	}

	status := stream.Status()
	donePayload := map[string]any{"status": string(status)}
	if streamErr := stream.Err(); streamErr != nil {
		donePayload["error"] = streamErr.Error()
	}
	writer.WriteEvent("done", donePayload)

	if rt.metrics != nil {
		rt.metrics.RecordChatStream(serviceName, string(status), chunkCount, time.Since(start))
	}
}
