// internal/storage/postgres/jobs.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	stderr "firmadoc-engine/internal/common/errors"
	"firmadoc-engine/internal/models"
)

// JobStore persists notification jobs in PostgreSQL.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `id, document_id, kind, payload, scheduled_for, sent_at, cancelled_at, created_at`

func (s *JobStore) Create(ctx context.Context, job *models.NotificationJob) error {
	var payload interface{}
	if job.Payload != nil {
		raw, err := json.Marshal(job.Payload)
		if err != nil {
			return stderr.NewPersistenceFailedError(err)
		}
		payload = raw
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.DocumentID, string(job.Kind), payload,
		job.ScheduledFor, job.SentAt, job.CancelledAt, job.CreatedAt,
	)
	if err != nil {
		return stderr.NewPersistenceFailedError(err)
	}
	return nil
}

func (s *JobStore) Due(ctx context.Context, now time.Time) ([]*models.NotificationJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM notification_jobs
		 WHERE sent_at IS NULL AND cancelled_at IS NULL AND scheduled_for <= $1
		 ORDER BY scheduled_for`,
		now,
	)
	if err != nil {
		return nil, stderr.NewPersistenceFailedError(err)
	}
	defer rows.Close()

	var jobs []*models.NotificationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, stderr.NewPersistenceFailedError(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, stderr.NewPersistenceFailedError(err)
	}
	return jobs, nil
}

// Claim stamps sent_at if (and only if) the job is still pending. The
// guarded UPDATE makes concurrent sweeps race-safe: only one wins.
func (s *JobStore) Claim(ctx context.Context, jobID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notification_jobs SET sent_at = $1
		 WHERE id = $2 AND sent_at IS NULL AND cancelled_at IS NULL`,
		at, jobID,
	)
	if err != nil {
		return false, stderr.NewPersistenceFailedError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, stderr.NewPersistenceFailedError(err)
	}
	return affected == 1, nil
}

func (s *JobStore) Release(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notification_jobs SET sent_at = NULL WHERE id = $1`, jobID)
	if err != nil {
		return stderr.NewPersistenceFailedError(err)
	}
	return nil
}

func (s *JobStore) Cancel(ctx context.Context, jobID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notification_jobs SET cancelled_at = $1
		 WHERE id = $2 AND sent_at IS NULL`,
		at, jobID,
	)
	if err != nil {
		return stderr.NewPersistenceFailedError(err)
	}
	return nil
}

func (s *JobStore) HasSent(ctx context.Context, documentID string, kind models.NotificationKind) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notification_jobs
		 WHERE document_id = $1 AND kind = $2 AND sent_at IS NOT NULL`,
		documentID, string(kind),
	).Scan(&count)
	if err != nil {
		return false, stderr.NewPersistenceFailedError(err)
	}
	return count > 0, nil
}

func (s *JobStore) ListByDocument(ctx context.Context, documentID string) ([]*models.NotificationJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM notification_jobs
		 WHERE document_id = $1 ORDER BY scheduled_for`,
		documentID,
	)
	if err != nil {
		return nil, stderr.NewPersistenceFailedError(err)
	}
	defer rows.Close()

	var jobs []*models.NotificationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, stderr.NewPersistenceFailedError(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, stderr.NewPersistenceFailedError(err)
	}
	return jobs, nil
}

func scanJob(row rowScanner) (*models.NotificationJob, error) {
	var (
		job        models.NotificationJob
		kind       string
		payloadRaw []byte
		sentAt     sql.NullTime
		cancelled  sql.NullTime
	)
	if err := row.Scan(
		&job.ID, &job.DocumentID, &kind, &payloadRaw,
		&job.ScheduledFor, &sentAt, &cancelled, &job.CreatedAt,
	); err != nil {
		return nil, err
	}

	job.Kind = models.NotificationKind(kind)
	if len(payloadRaw) > 0 {
		if err := json.Unmarshal(payloadRaw, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if sentAt.Valid {
		t := sentAt.Time
		job.SentAt = &t
	}
	if cancelled.Valid {
		t := cancelled.Time
		job.CancelledAt = &t
	}
	return &job, nil
}
