package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidQuery          = errors.New("invalid query")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrGenerationInterrupted = errors.New("generation interrupted")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Ingestion stages where a single item can fail.
const (
	IngestStageValidate = "validate"
	IngestStageCatalog  = "catalog"
	IngestStageIndex    = "index"
	IngestStageSkipped  = "skipped"
)

// IngestItemError names one failed item, the store/stage it failed in, and
// the cause.
type IngestItemError struct {
	ItemID string `json:"item_id"`
	Stage  string `json:"stage"`
	Err    error  `json:"-"`
}

func (e IngestItemError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.ItemID, e.Stage, e.Err)
}

// IngestError aggregates per-item failures of one ingest call. Items that
// succeeded before or after a failure stay committed.
type IngestError struct {
	Items []IngestItemError
}

func (e *IngestError) Error() string {
	if e == nil || len(e.Items) == 0 {
		return "ingest failed"
	}
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, item.Error())
	}
	return fmt.Sprintf("ingest: %d item(s) failed: %s", len(e.Items), strings.Join(parts, "; "))
}

// Unwrap exposes the per-item causes so errors.Is can detect, for example,
// a store-unavailable abort inside the aggregate.
func (e *IngestError) Unwrap() []error {
	out := make([]error, 0, len(e.Items))
	for _, item := range e.Items {
		out = append(out, item.Err)
	}
	return out
}
