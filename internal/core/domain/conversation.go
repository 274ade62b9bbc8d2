package domain

import "time"

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Recommendation is the lightweight reference an assistant turn keeps to a
// surfaced catalog item.
type Recommendation struct {
	FoodID string  `json:"food_id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
}

// ConversationTurn is one user or assistant message inside a chat session.
// An assistant turn may cite recommendations; those food ids must exist in
// the catalog at write time.
type ConversationTurn struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"session_id"`
	Role            TurnRole         `json:"role"`
	Content         string           `json:"content"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Incomplete      bool             `json:"incomplete,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatRequest is the input for one conversational turn. When History is nil
// the orchestrator loads recent turns from the conversation store.
type ChatRequest struct {
	UserID    string
	SessionID string
	Message   string
	Filter    PreferenceFilter
	History   []ConversationTurn
}

// GenerationChunk is one fragment produced by the generation capability.
// Err marks a mid-stream failure; Done marks normal end-of-stream.
type GenerationChunk struct {
	Content string
	Done    bool
	Err     error
}
