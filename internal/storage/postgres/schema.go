// internal/storage/postgres/schema.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id              TEXT PRIMARY KEY,
		hash            TEXT NOT NULL,
		status          TEXT NOT NULL,
		flags           JSONB NOT NULL DEFAULT '{}'::jsonb,
		signature_blob  TEXT NOT NULL DEFAULT '',
		recipient_email TEXT NOT NULL,
		recipient_name  TEXT NOT NULL,
		expires_at      TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_expiry_idx
		ON documents (expires_at)
		WHERE status IN ('AWAITING_OTP', 'AUTHENTICATED')`,
	`CREATE TABLE IF NOT EXISTS notification_jobs (
		id            TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL REFERENCES documents (id),
		kind          TEXT NOT NULL,
		payload       JSONB,
		scheduled_for TIMESTAMPTZ NOT NULL,
		sent_at       TIMESTAMPTZ,
		cancelled_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notification_jobs_due_idx
		ON notification_jobs (scheduled_for)
		WHERE sent_at IS NULL AND cancelled_at IS NULL`,
	// Backs the one-sent-job-per-(document, kind) invariant at the storage
	// level, on top of the scheduler's own dedup check.
	`CREATE UNIQUE INDEX IF NOT EXISTS notification_jobs_sent_once_idx
		ON notification_jobs (document_id, kind)
		WHERE sent_at IS NOT NULL`,
}

// EnsureSchema creates the engine tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
