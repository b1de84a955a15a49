// internal/models/notification.go
package models

import "time"

// NotificationKind identifies which lifecycle email a job delivers.
type NotificationKind string

const (
	KindCreated       NotificationKind = "created"
	KindFollowup      NotificationKind = "followup"
	KindExpiryWarning NotificationKind = "expiry-warning"
	KindExpired       NotificationKind = "expired"
	KindClosed        NotificationKind = "closed"
)

// NotificationJob is a durable, deduplicated unit of outbound email work.
// SentAt stays nil until delivery succeeds, so a failed attempt is retried
// naturally by the next scheduler sweep. CancelledAt marks jobs whose kind no
// longer applies to the document's current status.
type NotificationJob struct {
	ID           string            `json:"id"`
	DocumentID   string            `json:"documentId"`
	Kind         NotificationKind  `json:"kind"`
	Payload      map[string]string `json:"payload,omitempty"` // template parameters, e.g. the OTP for created mails
	ScheduledFor time.Time         `json:"scheduledFor"`
	SentAt       *time.Time        `json:"sentAt,omitempty"`
	CancelledAt  *time.Time        `json:"cancelledAt,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Pending reports whether the job is still waiting for a delivery attempt.
func (j *NotificationJob) Pending() bool {
	return j.SentAt == nil && j.CancelledAt == nil
}
