// internal/engine/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"firmadoc-engine/internal/common/clock"
	"firmadoc-engine/internal/common/logger"
	"firmadoc-engine/internal/common/metrics"
	"firmadoc-engine/internal/mail"
	"firmadoc-engine/internal/models"

	"github.com/google/uuid"
)

// deliverableIn lists the document statuses in which each notification kind
// is still worth delivering. A due job whose document moved elsewhere is
// cancelled instead of sent; the check happens before every delivery
// attempt, not only at scheduling time.
var deliverableIn = map[models.NotificationKind][]models.Status{
	models.KindCreated:       {models.StatusAwaitingOTP},
	models.KindFollowup:      {models.StatusSigned, models.StatusClosed},
	models.KindExpiryWarning: {models.StatusSigned, models.StatusClosed},
	models.KindExpired:       {models.StatusSigned, models.StatusClosed, models.StatusExpired},
	models.KindClosed:        {models.StatusClosed},
}

// Scheduler computes when lifecycle emails are due and delivers them through
// the mail transport. It holds no timer of its own: Tick is driven by an
// external ticker.
type Scheduler struct {
	jobs        JobStore
	docs        DocumentGetter
	mailer      mail.Mailer
	clock       clock.Clock
	logger      logger.Logger
	warningLead time.Duration
}

func New(jobs JobStore, docs DocumentGetter, mailer mail.Mailer, clk clock.Clock, log logger.Logger, warningLead time.Duration) *Scheduler {
	if warningLead <= 0 {
		warningLead = 7 * 24 * time.Hour
	}
	return &Scheduler{
		jobs:        jobs,
		docs:        docs,
		mailer:      mailer,
		clock:       clk,
		logger:      log.WithFields(map[string]interface{}{"component": "scheduler"}),
		warningLead: warningLead,
	}
}

// ScheduleOnCreate enqueues the creation email, due immediately. The OTP
// travels in the job payload so the sweep can render it into the mail body.
func (s *Scheduler) ScheduleOnCreate(ctx context.Context, doc *models.Document, otpCode string) error {
	return s.enqueue(ctx, doc, models.KindCreated, s.clock.Now(), map[string]string{"otp": otpCode})
}

// ScheduleOnSign enqueues the three post-signature jobs: immediate
// follow-up, warning at ExpiresAt minus the lead, final notice at ExpiresAt.
func (s *Scheduler) ScheduleOnSign(ctx context.Context, doc *models.Document) error {
	now := s.clock.Now()
	if err := s.enqueue(ctx, doc, models.KindFollowup, now, nil); err != nil {
		return err
	}
	if err := s.enqueue(ctx, doc, models.KindExpiryWarning, doc.ExpiresAt.Add(-s.warningLead), nil); err != nil {
		return err
	}
	return s.enqueue(ctx, doc, models.KindExpired, doc.ExpiresAt, nil)
}

// ScheduleOnExpire enqueues the expiry notice, due immediately.
func (s *Scheduler) ScheduleOnExpire(ctx context.Context, doc *models.Document) error {
	return s.enqueue(ctx, doc, models.KindExpired, s.clock.Now(), nil)
}

// ScheduleOnClose enqueues the closure email, due immediately.
func (s *Scheduler) ScheduleOnClose(ctx context.Context, doc *models.Document) error {
	return s.enqueue(ctx, doc, models.KindClosed, s.clock.Now(), nil)
}

func (s *Scheduler) enqueue(ctx context.Context, doc *models.Document, kind models.NotificationKind, due time.Time, payload map[string]string) error {
	job := &models.NotificationJob{
		ID:           uuid.New().String(),
		DocumentID:   doc.ID,
		Kind:         kind,
		Payload:      payload,
		ScheduledFor: due,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("enqueue %s job: %w", kind, err)
	}

	s.logger.Debug("job scheduled", map[string]interface{}{
		"documentId":   doc.ID,
		"kind":         string(kind),
		"scheduledFor": due,
	})
	return nil
}

// TickResult summarizes one sweep pass.
type TickResult struct {
	Sent      int
	Failed    int
	Cancelled int
	Skipped   int
}

// Tick is the time-driven sweep: it delivers every due, unsent job. Jobs are
// processed in ScheduledFor order so a reminder can never be sent after the
// expiry notice it precedes. A delivery failure is isolated to its job and
// leaves SentAt null, so the next tick retries it; there is no backoff here.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	start := s.clock.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(s.clock.Now().Sub(start).Seconds())
	}()

	var res TickResult

	due, err := s.jobs.Due(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list due jobs: %w", err)
	}

	for _, job := range due {
		switch s.process(ctx, job, now) {
		case outcomeSent:
			res.Sent++
		case outcomeFailed:
			res.Failed++
		case outcomeCancelled:
			res.Cancelled++
		case outcomeSkipped:
			res.Skipped++
		}
	}

	return res, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeCancelled
	outcomeSkipped
)

func (s *Scheduler) process(ctx context.Context, job *models.NotificationJob, now time.Time) outcome {
	log := s.logger.WithFields(map[string]interface{}{
		"jobId":      job.ID,
		"documentId": job.DocumentID,
		"kind":       string(job.Kind),
	})

	doc, err := s.docs.Get(ctx, job.DocumentID)
	if err != nil {
		log.Warn("document lookup failed, leaving job pending", map[string]interface{}{"error": err.Error()})
		return outcomeSkipped
	}

	if !kindApplies(job.Kind, doc.Status) {
		if err := s.jobs.Cancel(ctx, job.ID, now); err != nil {
			log.Warn("cancel failed", map[string]interface{}{"error": err.Error()})
			return outcomeSkipped
		}
		metrics.NotificationsCancelled.WithLabelValues(string(job.Kind)).Inc()
		log.Info("job cancelled, document status moved on", map[string]interface{}{"status": string(doc.Status)})
		return outcomeCancelled
	}

	// One successfully sent job per (document, kind): a duplicate created on
	// re-scheduling (e.g. after a restart) is cancelled here.
	sent, err := s.jobs.HasSent(ctx, job.DocumentID, job.Kind)
	if err != nil {
		log.Warn("dedup check failed, leaving job pending", map[string]interface{}{"error": err.Error()})
		return outcomeSkipped
	}
	if sent {
		if err := s.jobs.Cancel(ctx, job.ID, now); err != nil {
			log.Warn("cancel failed", map[string]interface{}{"error": err.Error()})
		}
		return outcomeCancelled
	}

	// Claim before sending so a concurrent tick cannot deliver the same job.
	claimed, err := s.jobs.Claim(ctx, job.ID, now)
	if err != nil {
		log.Warn("claim failed", map[string]interface{}{"error": err.Error()})
		return outcomeSkipped
	}
	if !claimed {
		return outcomeSkipped
	}

	msg, err := s.render(job, doc)
	if err != nil {
		// Unrenderable jobs would fail forever; cancel instead of retrying.
		log.Error("render failed, cancelling job", map[string]interface{}{"error": err.Error()})
		_ = s.jobs.Release(ctx, job.ID)
		_ = s.jobs.Cancel(ctx, job.ID, now)
		return outcomeCancelled
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		metrics.NotificationsFailed.WithLabelValues(string(job.Kind)).Inc()
		log.Error("delivery failed, will retry next sweep", map[string]interface{}{"error": err.Error()})
		if relErr := s.jobs.Release(ctx, job.ID); relErr != nil {
			log.Error("release failed after delivery error", map[string]interface{}{"error": relErr.Error()})
		}
		return outcomeFailed
	}

	metrics.NotificationsSent.WithLabelValues(string(job.Kind)).Inc()
	log.Info("notification delivered", nil)
	return outcomeSent
}

func (s *Scheduler) render(job *models.NotificationJob, doc *models.Document) (mail.Message, error) {
	data := map[string]string{
		"recipientName": doc.RecipientName,
		"documentHash":  doc.Hash,
		"expiresAt":     doc.ExpiresAt.Format("02/01/2006"),
	}
	for k, v := range job.Payload {
		data[k] = v
	}
	return mail.Render(job.Kind, doc.RecipientEmail, data)
}

func kindApplies(kind models.NotificationKind, status models.Status) bool {
	for _, s := range deliverableIn[kind] {
		if s == status {
			return true
		}
	}
	return false
}
