// internal/engine/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firmadoc-engine/internal/common/clock"
	"firmadoc-engine/internal/common/logger"
	"firmadoc-engine/internal/mail"
	"firmadoc-engine/internal/models"
	"firmadoc-engine/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// scriptedMailer records sends and fails the first failFirst attempts.
type scriptedMailer struct {
	mu        sync.Mutex
	sent      []mail.Message
	failFirst int
	attempts  int
}

func (m *scriptedMailer) Send(ctx context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failFirst {
		return errors.New("smtp refused")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *scriptedMailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

type schedEnv struct {
	sched  *Scheduler
	jobs   *memory.JobStore
	docs   *memory.DocumentStore
	mailer *scriptedMailer
	clk    *clock.Fake
}

func newSchedEnv(t *testing.T) *schedEnv {
	t.Helper()

	clk := clock.NewFake(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	jobs := memory.NewJobStore()
	docs := memory.NewDocumentStore()
	mailer := &scriptedMailer{}
	sched := New(jobs, docs, mailer, clk, logger.NewTestLogger(t), 7*24*time.Hour)

	return &schedEnv{sched: sched, jobs: jobs, docs: docs, mailer: mailer, clk: clk}
}

func seedDocument(t *testing.T, env *schedEnv, id string, status models.Status) *models.Document {
	t.Helper()

	doc := &models.Document{
		ID:             id,
		Hash:           "a1b2c3d4e5f6",
		Status:         status,
		Flags:          make(map[models.Milestone]bool),
		RecipientEmail: "mario.rossi@example.com",
		RecipientName:  "Mario Rossi",
		ExpiresAt:      env.clk.Now().Add(30 * 24 * time.Hour),
		CreatedAt:      env.clk.Now(),
		UpdatedAt:      env.clk.Now(),
	}
	require.NoError(t, env.docs.Create(context.Background(), doc))
	return doc
}

// ==========================
// Scheduling
// ==========================

func TestScheduler_ScheduleOnSign_ThreeJobs(t *testing.T) {
	env := newSchedEnv(t)
	ctx := context.Background()

	doc := seedDocument(t, env, "doc-1", models.StatusSigned)
	require.NoError(t, env.sched.ScheduleOnSign(ctx, doc))

	all, err := env.jobs.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, models.KindFollowup, all[0].Kind)
	assert.Equal(t, env.clk.Now(), all[0].ScheduledFor)
	assert.Equal(t, models.KindExpiryWarning, all[1].Kind)
	assert.Equal(t, doc.ExpiresAt.Add(-7*24*time.Hour), all[1].ScheduledFor)
	assert.Equal(t, models.KindExpired, all[2].Kind)
	assert.Equal(t, doc.ExpiresAt, all[2].ScheduledFor)
}

func TestScheduler_ScheduleOnCreate_CarriesOTP(t *testing.T) {
	env := newSchedEnv(t)
	ctx := context.Background()

	doc := seedDocument(t, env, "doc-1", models.StatusAwaitingOTP)
	require.NoError(t, env.sched.ScheduleOnCreate(ctx, doc, "424242"))

	all, err := env.jobs.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "424242", all[0].Payload["otp"])
}

// ==========================
// Tick / Delivery
// ==========================

func TestScheduler_Tick_SendsDueJobsOnly(t *testing.T) {
	env := newSchedEnv(t)
	ctx := context.Background()

	doc := seedDocument(t, env, "doc-1", models.StatusSigned)
	require.NoError(t, env.sched.ScheduleOnSign(ctx, doc))

	res, err := env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent) // only the immediate follow-up is due
	assert.Equal(t, 0, res.Failed)

	sent := env.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, "firmato correttamente")
}

func TestScheduler_Tick_Idempotent(t *testing.T) {
	env := newSchedEnv(t)
	ctx := context.Background()

	doc := seedDocument(t, env, "doc-1", models.StatusSigned)
	require.NoError(t, env.sched.ScheduleOnSign(ctx, doc))

	_, err := env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)
	res, err := env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Sent)
	assert.Len(t, env.mailer.Sent(), 1)
}

func TestScheduler_Tick_DedupAcrossDuplicateJobs(t *testing.T) {
	env := newSchedEnv(t)
	ctx := context.Background()

	doc := seedDocument(t, env, "doc-1", models.StatusClosed)

	// Re-scheduling after a restart leaves two jobs of the same kind.
	require.NoError(t, env.sched.ScheduleOnClose(ctx, doc))
	require.NoError(t, env.sched.ScheduleOnClose(ctx, doc))

	res, err := env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Cancelled)
	assert.Len(t, env.mailer.Sent(), 1)
}

func TestScheduler_Tick_FailureRetriedNextSweep(t *testing.T) {
	env := newSchedEnv(t)
	env.mailer.failFirst = 1
	ctx := context.Background()

	doc := seedDocument(t, env, "doc-1", models.StatusClosed)
	require.NoError(t, env.sched.ScheduleOnClose(ctx, doc))

	res, err := env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, env.mailer.Sent())

	// The failed job was released, so the next sweep delivers it.
	res, err = env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Len(t, env.mailer.Sent(), 1)
}

func TestScheduler_Tick_FailureIsolatedPerJob(t *testing.T) {
	env := newSchedEnv(t)
	env.mailer.failFirst = 1
	ctx := context.Background()

	first := seedDocument(t, env, "doc-1", models.StatusClosed)
	second := seedDocument(t, env, "doc-2", models.StatusClosed)
	require.NoError(t, env.sched.ScheduleOnClose(ctx, first))
	env.clk.Advance(time.Second)
	require.NoError(t, env.sched.ScheduleOnClose(ctx, second))

	res, err := env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Sent)
}

func TestScheduler_Tick_CancelsStaleJobs(t *testing.T) {
	env := newSchedEnv(t)
	ctx := context.Background()

	doc := seedDocument(t, env, "doc-1", models.StatusAwaitingOTP)
	require.NoError(t, env.sched.ScheduleOnCreate(ctx, doc, "424242"))

	// The client rejected before the sweep ran.
	doc.Status = models.StatusRejected
	require.NoError(t, env.docs.Update(ctx, doc, models.StatusAwaitingOTP))

	res, err := env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)
	assert.Empty(t, env.mailer.Sent())

	// Cancelled jobs never come back.
	res, err = env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Cancelled)
	assert.Equal(t, 0, res.Sent)
}

func TestScheduler_Tick_OrderedByScheduledFor(t *testing.T) {
	env := newSchedEnv(t)
	ctx := context.Background()

	doc := seedDocument(t, env, "doc-1", models.StatusSigned)
	require.NoError(t, env.sched.ScheduleOnSign(ctx, doc))

	// A long-idle daemon wakes up past the expiry: warning goes out before
	// the final notice within the same sweep.
	env.clk.Advance(31 * 24 * time.Hour)
	res, err := env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)

	sent := env.mailer.Sent()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[0].Subject, "firmato correttamente")
	assert.Contains(t, sent[1].Subject, "scade tra")
	assert.Contains(t, sent[2].Subject, "scaduto")
}

// ==========================
// Rendering
// ==========================

func TestScheduler_RenderUsesDocumentFields(t *testing.T) {
	env := newSchedEnv(t)
	ctx := context.Background()

	doc := seedDocument(t, env, "doc-1", models.StatusAwaitingOTP)
	require.NoError(t, env.sched.ScheduleOnCreate(ctx, doc, "424242"))

	res, err := env.sched.Tick(ctx, env.clk.Now())
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)

	msg := env.mailer.Sent()[0]
	assert.Equal(t, "mario.rossi@example.com", msg.To)
	assert.Contains(t, msg.TextBody, "Mario Rossi")
	assert.Contains(t, msg.TextBody, "424242")
	assert.Contains(t, msg.Subject, doc.Hash)
}
