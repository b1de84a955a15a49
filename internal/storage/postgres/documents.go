// internal/storage/postgres/documents.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stderr "firmadoc-engine/internal/common/errors"
	"firmadoc-engine/internal/models"
)

// DocumentStore persists documents in PostgreSQL. Status updates are
// compare-and-set: the UPDATE is guarded on the expected status and a zero
// row count surfaces as STATUS_CONFLICT.
type DocumentStore struct {
	db *sql.DB
}

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `id, hash, status, flags, signature_blob, recipient_email, recipient_name, expires_at, created_at, updated_at`

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	flags, err := json.Marshal(doc.Flags)
	if err != nil {
		return stderr.NewPersistenceFailedError(err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID, doc.Hash, string(doc.Status), flags, doc.SignatureBlob,
		doc.RecipientEmail, doc.RecipientName, doc.ExpiresAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return stderr.NewPersistenceFailedError(err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderr.NewDocumentNotFoundError(id)
	}
	if err != nil {
		return nil, stderr.NewPersistenceFailedError(err)
	}
	return doc, nil
}

func (s *DocumentStore) Update(ctx context.Context, doc *models.Document, expect models.Status) error {
	flags, err := json.Marshal(doc.Flags)
	if err != nil {
		return stderr.NewPersistenceFailedError(err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents
		 SET status = $1, flags = $2, signature_blob = $3, expires_at = $4, updated_at = $5
		 WHERE id = $6 AND status = $7`,
		string(doc.Status), flags, doc.SignatureBlob, doc.ExpiresAt, doc.UpdatedAt,
		doc.ID, string(expect),
	)
	if err != nil {
		return stderr.NewPersistenceFailedError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return stderr.NewPersistenceFailedError(err)
	}
	if affected == 0 {
		// Either the row is gone or the status moved under us.
		if _, getErr := s.Get(ctx, doc.ID); getErr != nil {
			return getErr
		}
		return stderr.NewStatusConflictError(doc.ID, string(expect))
	}
	return nil
}

func (s *DocumentStore) ListExpirable(ctx context.Context, now time.Time) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE status IN ($1, $2) AND expires_at <= $3
		 ORDER BY expires_at`,
		string(models.StatusAwaitingOTP), string(models.StatusAuthenticated), now,
	)
	if err != nil {
		return nil, stderr.NewPersistenceFailedError(err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, stderr.NewPersistenceFailedError(err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, stderr.NewPersistenceFailedError(err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc      models.Document
		status   string
		flagsRaw []byte
	)
	if err := row.Scan(
		&doc.ID, &doc.Hash, &status, &flagsRaw, &doc.SignatureBlob,
		&doc.RecipientEmail, &doc.RecipientName, &doc.ExpiresAt, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}

	doc.Status = models.Status(status)
	doc.Flags = make(map[models.Milestone]bool)
	if len(flagsRaw) > 0 {
		if err := json.Unmarshal(flagsRaw, &doc.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags: %w", err)
		}
	}
	return &doc, nil
}
