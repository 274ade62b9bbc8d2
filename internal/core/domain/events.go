package domain

import "time"

// CatalogUpdatedEvent is published after an ingest call commits at least one
// item to both stores. Best effort: losing an event never undoes an ingest.
type CatalogUpdatedEvent struct {
	BatchID    string    `json:"batch_id"`
	Ingested   int       `json:"ingested"`
	OccurredAt time.Time `json:"occurred_at"`
}
