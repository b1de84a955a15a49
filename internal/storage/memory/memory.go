// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	stderr "firmadoc-engine/internal/common/errors"
	"firmadoc-engine/internal/models"
)

// DocumentStore is an in-memory document store with the same compare-and-set
// semantics as the Postgres one. Used by tests and single-process mode.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*models.Document)}
}

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return stderr.NewPersistenceFailedError(errDuplicate{doc.ID})
	}
	s.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[id]
	if !exists {
		return nil, stderr.NewDocumentNotFoundError(id)
	}
	return cloneDoc(doc), nil
}

func (s *DocumentStore) Update(ctx context.Context, doc *models.Document, expect models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.docs[doc.ID]
	if !exists {
		return stderr.NewDocumentNotFoundError(doc.ID)
	}
	if current.Status != expect {
		return stderr.NewStatusConflictError(doc.ID, string(expect))
	}
	s.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (s *DocumentStore) ListExpirable(ctx context.Context, now time.Time) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*models.Document
	for _, doc := range s.docs {
		if doc.Status.Terminal() || doc.Status == models.StatusSigned || doc.Status == models.StatusDraft {
			continue
		}
		if !doc.ExpiresAt.After(now) {
			due = append(due, cloneDoc(doc))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	return due, nil
}

func cloneDoc(doc *models.Document) *models.Document {
	c := *doc
	c.Flags = make(map[models.Milestone]bool, len(doc.Flags))
	for k, v := range doc.Flags {
		c.Flags[k] = v
	}
	return &c
}

type errDuplicate struct{ id string }

func (e errDuplicate) Error() string { return "document already exists: " + e.id }

// JobStore is the in-memory notification job store.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.NotificationJob
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*models.NotificationJob)}
}

func (s *JobStore) Create(ctx context.Context, job *models.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cloneJob(job)
	s.jobs[job.ID] = c
	return nil
}

func (s *JobStore) Due(ctx context.Context, now time.Time) ([]*models.NotificationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.NotificationJob
	for _, job := range s.jobs {
		if job.Pending() && !job.ScheduledFor.After(now) {
			due = append(due, cloneJob(job))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	return due, nil
}

func (s *JobStore) Claim(ctx context.Context, jobID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.SentAt != nil || job.CancelledAt != nil {
		return false, nil
	}
	t := at
	job.SentAt = &t
	return true, nil
}

func (s *JobStore) Release(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		job.SentAt = nil
	}
	return nil
}

func (s *JobStore) Cancel(ctx context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.jobs[jobID]; exists && job.SentAt == nil {
		t := at
		job.CancelledAt = &t
	}
	return nil
}

func (s *JobStore) HasSent(ctx context.Context, documentID string, kind models.NotificationKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.DocumentID == documentID && job.Kind == kind && job.SentAt != nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *JobStore) ListByDocument(ctx context.Context, documentID string) ([]*models.NotificationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.NotificationJob
	for _, job := range s.jobs {
		if job.DocumentID == documentID {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func cloneJob(job *models.NotificationJob) *models.NotificationJob {
	c := *job
	if job.Payload != nil {
		c.Payload = make(map[string]string, len(job.Payload))
		for k, v := range job.Payload {
			c.Payload[k] = v
		}
	}
	if job.SentAt != nil {
		t := *job.SentAt
		c.SentAt = &t
	}
	if job.CancelledAt != nil {
		t := *job.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
