// internal/engine/lifecycle/store.go
package lifecycle

import (
	"context"
	"time"

	"firmadoc-engine/internal/models"
)

// DocumentStore is the durable storage consumed by the engine.
//
// Update performs a compare-and-set on status: the write only lands when the
// row still carries the expect status, which serializes concurrent
// transitions on the same document. Implementations return a
// DOCUMENT_NOT_FOUND or STATUS_CONFLICT StandardError accordingly.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document, expect models.Status) error
	// ListExpirable returns unsigned, non-terminal documents whose ExpiresAt
	// is at or before now.
	ListExpirable(ctx context.Context, now time.Time) ([]*models.Document, error)
}
