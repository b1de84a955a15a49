// internal/engine/scheduler/store.go
package scheduler

import (
	"context"
	"time"

	"firmadoc-engine/internal/models"
)

// JobStore is the durable notification job storage.
//
// Claim conditionally stamps SentAt: it returns false when another sweep
// already claimed the job, which is what makes repeated or concurrent ticks
// safe. Release undoes a claim after a delivery failure so the next sweep
// retries naturally.
type JobStore interface {
	Create(ctx context.Context, job *models.NotificationJob) error
	// Due returns pending jobs with ScheduledFor at or before now, ordered
	// by ScheduledFor ascending.
	Due(ctx context.Context, now time.Time) ([]*models.NotificationJob, error)
	Claim(ctx context.Context, jobID string, at time.Time) (bool, error)
	Release(ctx context.Context, jobID string) error
	Cancel(ctx context.Context, jobID string, at time.Time) error
	// HasSent reports whether a job of this kind was already delivered for
	// the document.
	HasSent(ctx context.Context, documentID string, kind models.NotificationKind) (bool, error)
	ListByDocument(ctx context.Context, documentID string) ([]*models.NotificationJob, error)
}

// DocumentGetter is the read side of the document store the scheduler needs
// to re-check status before each delivery attempt.
type DocumentGetter interface {
	Get(ctx context.Context, id string) (*models.Document, error)
}
