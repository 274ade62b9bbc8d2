package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/food-recommender/internal/core/domain"
	"github.com/kirillkom/food-recommender/internal/core/ports"
)

// IngestCatalogUseCase fans each food record out to the catalog store and
// the semantic index. The fan-out is not transactional: items that made it
// into both stores stay committed even when later items fail, and the call
// reports every failure in one aggregate IngestError.
type IngestCatalogUseCase struct {
	catalog ports.CatalogStore
	index   ports.SemanticIndex
	events  ports.CatalogEvents
}

func NewIngestCatalogUseCase(
	catalog ports.CatalogStore,
	index ports.SemanticIndex,
	events ports.CatalogEvents,
) *IngestCatalogUseCase {
	return &IngestCatalogUseCase{
		catalog: catalog,
		index:   index,
		events:  events,
	}
}

// Ingest processes records in order and returns the number of items present
// in both stores when it returns (partial-success counting).
func (uc *IngestCatalogUseCase) Ingest(ctx context.Context, records []domain.RawFoodRecord) (int, error) {
	ingested := 0
	failures := make([]domain.IngestItemError, 0)

	for i, record := range records {
		itemID := record.ID
		if itemID == "" {
			itemID = fmt.Sprintf("record[%d]", i)
		}

		item, err := record.Normalize()
		if err != nil {
			failures = append(failures, domain.IngestItemError{
				ItemID: itemID,
				Stage:  domain.IngestStageValidate,
				Err:    err,
			})
			continue
		}

		if err := uc.catalog.Upsert(ctx, &item); err != nil {
			failures = append(failures, domain.IngestItemError{
				ItemID: item.ID,
				Stage:  domain.IngestStageCatalog,
				Err:    err,
			})
			if domain.IsKind(err, domain.ErrStoreUnavailable) {
				failures = append(failures, abortRemaining(records[i+1:])...)
				break
			}
			continue
		}

		document := domain.CanonicalDocument(item)
		if err := uc.index.Upsert(ctx, item.ID, document, domain.IndexMetadata(item)); err != nil {
			failures = append(failures, domain.IngestItemError{
				ItemID: item.ID,
				Stage:  domain.IngestStageIndex,
				Err:    err,
			})
			if domain.IsKind(err, domain.ErrStoreUnavailable) {
				failures = append(failures, abortRemaining(records[i+1:])...)
				break
			}
			continue
		}

		ingested++
	}

	uc.publishUpdated(ctx, ingested)

	if len(failures) > 0 {
		return ingested, &domain.IngestError{Items: failures}
	}
	return ingested, nil
}

// publishUpdated notifies downstream consumers about a committed batch.
// Best effort: a lost event never fails the ingest that produced it.
func (uc *IngestCatalogUseCase) publishUpdated(ctx context.Context, ingested int) {
	if uc.events == nil || ingested == 0 {
		return
	}
	event := domain.CatalogUpdatedEvent{
		BatchID:    uuid.NewString(),
		Ingested:   ingested,
		OccurredAt: time.Now().UTC(),
	}
	if err := uc.events.PublishCatalogUpdated(ctx, event); err != nil {
		slog.Warn("catalog_event_publish_failed", "batch_id", event.BatchID, "error", err)
	}
}

func abortRemaining(records []domain.RawFoodRecord) []domain.IngestItemError {
	out := make([]domain.IngestItemError, 0, len(records))
	for i, record := range records {
		itemID := record.ID
		if itemID == "" {
			itemID = fmt.Sprintf("record[+%d]", i+1)
		}
		out = append(out, domain.IngestItemError{
			ItemID: itemID,
			Stage:  domain.IngestStageSkipped,
			Err:    fmt.Errorf("aborted: %w", domain.ErrStoreUnavailable),
		})
	}
	return out
}
