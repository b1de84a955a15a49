// internal/engine/lifecycle/service.go
package lifecycle

import (
	"context"
	"sync"
	"time"

	"firmadoc-engine/internal/common/clock"
	stderr "firmadoc-engine/internal/common/errors"
	"firmadoc-engine/internal/common/logger"
	"firmadoc-engine/internal/common/metrics"
	"firmadoc-engine/internal/common/validation"
	"firmadoc-engine/internal/engine/changetrack"
	"firmadoc-engine/internal/models"

	"github.com/google/uuid"
)

// Authenticator is the OTP collaborator.
type Authenticator interface {
	Issue(ctx context.Context, documentID string) (string, error)
	Verify(ctx context.Context, documentID, code string) error
}

// Notifier is the scheduling side of the notification scheduler. Scheduling
// is fire-and-forget relative to the state transition: a scheduling failure
// is logged and never fails the transition.
type Notifier interface {
	ScheduleOnCreate(ctx context.Context, doc *models.Document, otpCode string) error
	ScheduleOnSign(ctx context.Context, doc *models.Document) error
	ScheduleOnExpire(ctx context.Context, doc *models.Document) error
	ScheduleOnClose(ctx context.Context, doc *models.Document) error
}

// Config holds the engine's expiry policy.
//
// AcceptanceWindow bounds how long an unsigned document stays actionable
// after creation. ValidityWindow is stamped onto ExpiresAt at the moment of
// signing; the follow-up reminders are counted from that value.
type Config struct {
	AcceptanceWindow time.Duration
	ValidityWindow   time.Duration
	OTPDigits        int
}

// Engine owns document status and orchestrates the authenticator, the change
// trackers, and the notification scheduler. It is the transition API the
// rest of the application calls.
type Engine struct {
	docs     DocumentStore
	auth     Authenticator
	notifier Notifier
	clock    clock.Clock
	logger   logger.Logger
	cfg      Config

	mu       sync.Mutex
	trackers map[string]*changetrack.Tracker // one per document session
}

func New(docs DocumentStore, auth Authenticator, notifier Notifier, clk clock.Clock, log logger.Logger, cfg Config) *Engine {
	if cfg.OTPDigits <= 0 {
		cfg.OTPDigits = 6
	}
	return &Engine{
		docs:     docs,
		auth:     auth,
		notifier: notifier,
		clock:    clk,
		logger:   log.WithFields(map[string]interface{}{"component": "lifecycle"}),
		cfg:      cfg,
		trackers: make(map[string]*changetrack.Tracker),
	}
}

// CreateDocumentInput is the caller-facing creation payload.
type CreateDocumentInput struct {
	RecipientEmail string `json:"recipientEmail"`
	RecipientName  string `json:"recipientName"`
	Hash           string `json:"hash"`
}

// CreateDocument creates a document in AWAITING_OTP, issues the first OTP and
// schedules the creation email carrying it.
func (e *Engine) CreateDocument(ctx context.Context, in CreateDocumentInput) (*models.Document, error) {
	result := validation.ValidateInput(map[string]interface{}{
		"recipientEmail": in.RecipientEmail,
		"recipientName":  in.RecipientName,
		"hash":           in.Hash,
	}, getCreateDocumentSchema())
	if !result.Valid {
		return nil, stderr.NewValidationFailedError(result.ErrorSummary())
	}

	now := e.clock.Now()
	doc := &models.Document{
		ID:             uuid.New().String(),
		Hash:           in.Hash,
		Status:         models.StatusDraft,
		Flags:          make(map[models.Milestone]bool),
		RecipientEmail: in.RecipientEmail,
		RecipientName:  in.RecipientName,
		ExpiresAt:      now.Add(e.cfg.AcceptanceWindow),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	next, err := Next(doc.Status, EventCreate)
	if err != nil {
		return nil, err
	}
	doc.Status = next

	if err := e.docs.Create(ctx, doc); err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventCreate), "error").Inc()
		return nil, err
	}

	code, err := e.auth.Issue(ctx, doc.ID)
	if err != nil {
		// The document exists but no code went out; surface the failure so
		// the caller can retry issuance.
		metrics.LifecycleTransitions.WithLabelValues(string(EventCreate), "error").Inc()
		return nil, err
	}

	e.scheduleAsync(ctx, models.KindCreated, func(ctx context.Context) error {
		return e.notifier.ScheduleOnCreate(ctx, doc, code)
	})

	e.trackerFor(doc.ID).Initialize(doc.Hash)

	metrics.LifecycleTransitions.WithLabelValues(string(EventCreate), "success").Inc()
	e.logger.Info("document created", map[string]interface{}{
		"documentId": doc.ID,
		"hash":       doc.Hash,
		"expiresAt":  doc.ExpiresAt,
	})
	return doc, nil
}

// MarkOpened flips the DOCUMENT_OPENED milestone the first time the client
// opens the link. It changes no status.
func (e *Engine) MarkOpened(ctx context.Context, documentID string) error {
	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.HasFlag(models.MilestoneDocumentOpened) {
		return nil
	}
	doc.SetFlag(models.MilestoneDocumentOpened)
	doc.UpdatedAt = e.clock.Now()
	return e.docs.Update(ctx, doc, doc.Status)
}

// SubmitOTP verifies the supplied code and moves the document to
// AUTHENTICATED, flipping the EMAIL_OTP milestone.
func (e *Engine) SubmitOTP(ctx context.Context, documentID, code string) (*models.Document, error) {
	result := validation.ValidateInput(map[string]interface{}{
		"code": code,
	}, getSubmitOTPSchema(e.cfg.OTPDigits))
	if !result.Valid {
		return nil, stderr.NewValidationFailedError(result.ErrorSummary())
	}

	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	next, err := Next(doc.Status, EventSubmitOTP)
	if err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventSubmitOTP), "illegal").Inc()
		return nil, err
	}

	if err := e.auth.Verify(ctx, documentID, code); err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventSubmitOTP), "denied").Inc()
		return nil, err
	}

	from := doc.Status
	doc.Status = next
	doc.SetFlag(models.MilestoneEmailOTP)
	doc.UpdatedAt = e.clock.Now()

	if err := e.docs.Update(ctx, doc, from); err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventSubmitOTP), "error").Inc()
		return nil, err
	}

	metrics.LifecycleTransitions.WithLabelValues(string(EventSubmitOTP), "success").Inc()
	e.logger.Info("document authenticated", map[string]interface{}{"documentId": doc.ID})
	return doc, nil
}

// SignDocument stores the signature, freezes the document, stamps ExpiresAt
// with the validity window and schedules the three follow-up emails
// (immediate, warning at ExpiresAt minus the lead, final at ExpiresAt).
func (e *Engine) SignDocument(ctx context.Context, documentID, signatureBlob string) (*models.Document, error) {
	result := validation.ValidateInput(map[string]interface{}{
		"signatureBlob": signatureBlob,
	}, getSignDocumentSchema())
	if !result.Valid {
		return nil, stderr.NewValidationFailedError(result.ErrorSummary())
	}

	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	next, err := Next(doc.Status, EventSign)
	if err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventSign), "illegal").Inc()
		return nil, err
	}

	now := e.clock.Now()
	from := doc.Status
	doc.Status = next
	doc.SignatureBlob = signatureBlob
	doc.SetFlag(models.MilestoneClientSignature)
	doc.ExpiresAt = now.Add(e.cfg.ValidityWindow)
	doc.UpdatedAt = now

	if err := e.docs.Update(ctx, doc, from); err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventSign), "error").Inc()
		return nil, err
	}

	e.scheduleAsync(ctx, models.KindFollowup, func(ctx context.Context) error {
		return e.notifier.ScheduleOnSign(ctx, doc)
	})

	metrics.LifecycleTransitions.WithLabelValues(string(EventSign), "success").Inc()
	e.logger.Info("document signed", map[string]interface{}{
		"documentId": doc.ID,
		"expiresAt":  doc.ExpiresAt,
	})
	return doc, nil
}

// RejectDocument moves the document to REJECTED on explicit client or admin
// action.
func (e *Engine) RejectDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	next, err := Next(doc.Status, EventReject)
	if err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventReject), "illegal").Inc()
		return nil, err
	}

	from := doc.Status
	doc.Status = next
	doc.SetFlag(models.MilestoneRejected)
	doc.UpdatedAt = e.clock.Now()

	if err := e.docs.Update(ctx, doc, from); err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventReject), "error").Inc()
		return nil, err
	}

	metrics.LifecycleTransitions.WithLabelValues(string(EventReject), "success").Inc()
	e.logger.Info("document rejected", map[string]interface{}{"documentId": doc.ID})
	return doc, nil
}

// ConfirmStorage closes a signed document once the backing write succeeded,
// flipping STORAGE_CONFIRMATION and scheduling the closure email.
func (e *Engine) ConfirmStorage(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	next, err := Next(doc.Status, EventConfirmStorage)
	if err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventConfirmStorage), "illegal").Inc()
		return nil, err
	}

	from := doc.Status
	doc.Status = next
	doc.SetFlag(models.MilestoneStorageConfirmation)
	doc.UpdatedAt = e.clock.Now()

	if err := e.docs.Update(ctx, doc, from); err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventConfirmStorage), "error").Inc()
		return nil, err
	}

	e.scheduleAsync(ctx, models.KindClosed, func(ctx context.Context) error {
		return e.notifier.ScheduleOnClose(ctx, doc)
	})

	metrics.LifecycleTransitions.WithLabelValues(string(EventConfirmStorage), "success").Inc()
	e.logger.Info("document closed", map[string]interface{}{"documentId": doc.ID})
	return doc, nil
}

// ExpireDocument applies the time-triggered expire event to one document.
// The guard requires now at or past ExpiresAt and a not-yet-signed document.
func (e *Engine) ExpireDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return e.expire(ctx, doc)
}

// ExpireDue sweeps all documents whose expiry is due. Invoked periodically
// by the daemon. Per-document failures are logged and do not abort the sweep.
func (e *Engine) ExpireDue(ctx context.Context) (int, error) {
	now := e.clock.Now()
	due, err := e.docs.ListExpirable(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, doc := range due {
		if _, err := e.expire(ctx, doc); err != nil {
			e.logger.Warn("expiry failed", map[string]interface{}{
				"documentId": doc.ID,
				"error":      err.Error(),
			})
			continue
		}
		expired++
	}
	return expired, nil
}

func (e *Engine) expire(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if e.clock.Now().Before(doc.ExpiresAt) {
		return nil, stderr.NewIllegalTransitionError(string(doc.Status), string(EventExpire))
	}

	next, err := Next(doc.Status, EventExpire)
	if err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventExpire), "illegal").Inc()
		return nil, err
	}

	from := doc.Status
	doc.Status = next
	doc.SetFlag(models.MilestoneExpired)
	doc.UpdatedAt = e.clock.Now()

	if err := e.docs.Update(ctx, doc, from); err != nil {
		metrics.LifecycleTransitions.WithLabelValues(string(EventExpire), "error").Inc()
		return nil, err
	}

	e.scheduleAsync(ctx, models.KindExpired, func(ctx context.Context) error {
		return e.notifier.ScheduleOnExpire(ctx, doc)
	})

	metrics.LifecycleTransitions.WithLabelValues(string(EventExpire), "success").Inc()
	e.logger.Info("document expired", map[string]interface{}{"documentId": doc.ID})
	return doc, nil
}

// GetStatus returns the milestone trail for progress display.
func (e *Engine) GetStatus(ctx context.Context, documentID string) ([]models.StatusStep, error) {
	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return doc.StatusSteps(), nil
}

// GetDocument returns the full document record.
func (e *Engine) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	return e.docs.Get(ctx, documentID)
}

// TrackChange records a field-level edit to the quote. Edits to a signed
// document are refused: presence of the signature makes it read-only.
func (e *Engine) TrackChange(ctx context.Context, documentID string, productIndex int, productName string, changeType models.ChangeType) error {
	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.ReadOnly() {
		return stderr.NewIllegalTransitionError(string(doc.Status), "trackChange")
	}

	tracker := e.trackerFor(documentID)
	tracker.Initialize(doc.Hash)
	tracker.Track(productIndex, productName, changeType)
	return nil
}

// GetChangeSummary returns the per-product edit summary of the session.
func (e *Engine) GetChangeSummary(ctx context.Context, documentID string) ([]models.ProductChangeSummary, error) {
	if _, err := e.docs.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return e.trackerFor(documentID).Summarize(), nil
}

// trackerFor returns the per-session tracker, creating it on first use.
// Each document session owns an independent tracker instance.
func (e *Engine) trackerFor(documentID string) *changetrack.Tracker {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trackers[documentID]
	if !ok {
		t = changetrack.NewTracker(e.clock)
		e.trackers[documentID] = t
	}
	return t
}

// scheduleAsync runs a scheduling call, logging failures instead of
// propagating them. State progress stays authoritative even when a
// notification cannot be scheduled.
func (e *Engine) scheduleAsync(ctx context.Context, kind models.NotificationKind, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		e.logger.Error("notification scheduling failed", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
	}
}
