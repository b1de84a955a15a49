// internal/models/document.go
package models

import "time"

// Status is the single source of truth for which transitions are legal.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusAwaitingOTP   Status = "AWAITING_OTP"
	StatusAuthenticated Status = "AUTHENTICATED"
	StatusSigned        Status = "SIGNED"
	StatusClosed        Status = "CLOSED"
	StatusExpired       Status = "EXPIRED"
	StatusRejected      Status = "REJECTED"
)

// Terminal reports whether no event at all is accepted in this status.
// SIGNED is excluded: it still accepts the storage confirmation.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusExpired || s == StatusRejected
}

// Milestone is a named progress flag. Flags flip to true exactly once and
// never revert, so the UI can show a monotonic trail even when the status
// moves sideways (e.g. AUTHENTICATED to EXPIRED).
type Milestone string

const (
	MilestoneDocumentOpened      Milestone = "DOCUMENT_OPENED"
	MilestoneEmailOTP            Milestone = "EMAIL_OTP"
	MilestoneClientSignature     Milestone = "CLIENT_SIGNATURE"
	MilestoneStorageConfirmation Milestone = "STORAGE_CONFIRMATION"
	MilestoneExpired             Milestone = "EXPIRED"
	MilestoneRejected            Milestone = "REJECTED"
)

// MilestoneOrder is the display order of the progress trail.
var MilestoneOrder = []Milestone{
	MilestoneDocumentOpened,
	MilestoneEmailOTP,
	MilestoneClientSignature,
	MilestoneStorageConfirmation,
	MilestoneExpired,
	MilestoneRejected,
}

// StatusStep is the JSON shape the UI renders for one milestone.
type StatusStep struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// Document is the long-lived root entity of the lifecycle engine.
type Document struct {
	ID             string             `json:"id"`
	Hash           string             `json:"hash"`
	Status         Status             `json:"status"`
	Flags          map[Milestone]bool `json:"statusFlags"`
	SignatureBlob  string             `json:"signatureBlob,omitempty"` // base64 image, presence makes the document read-only
	RecipientEmail string             `json:"recipientEmail"`
	RecipientName  string             `json:"recipientName"`
	ExpiresAt      time.Time          `json:"expiresAt"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// SetFlag flips a milestone to true. Flags are append-only: there is no way
// to unset one.
func (d *Document) SetFlag(m Milestone) {
	if d.Flags == nil {
		d.Flags = make(map[Milestone]bool)
	}
	d.Flags[m] = true
}

// HasFlag reports whether a milestone has been reached.
func (d *Document) HasFlag(m Milestone) bool {
	return d.Flags[m]
}

// ReadOnly reports whether the document content is frozen.
func (d *Document) ReadOnly() bool {
	return d.SignatureBlob != ""
}

// StatusSteps returns the progress trail in display order.
func (d *Document) StatusSteps() []StatusStep {
	steps := make([]StatusStep, 0, len(MilestoneOrder))
	for _, m := range MilestoneOrder {
		steps = append(steps, StatusStep{Name: string(m), Value: d.Flags[m]})
	}
	return steps
}
