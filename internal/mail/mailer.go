// internal/mail/mailer.go
package mail

import "context"

// Message is one outbound email.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	TextBody string `json:"textBody"`
	HTMLBody string `json:"htmlBody,omitempty"`
}

// Mailer is the outbound transport consumed by the notification scheduler.
// Implementations are constructed once at startup and passed in explicitly;
// there is no process-wide mail singleton.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
