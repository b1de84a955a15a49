// internal/mail/smtp_test.go
package mail

import (
	"testing"

	"firmadoc-engine/internal/common/config"
	"firmadoc-engine/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"mario.rossi@example.com", true},
		{"a@b.co", true},
		{"  padded@example.com  ", true},
		{"", false},
		{"   ", false},
		{"no-at-sign", false},
		{"two@@example.com", false},
		{"@example.com", false},
		{"mario@", false},
		{"mario@localhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, isValidEmail(tt.email))
		})
	}
}

func TestSMTPMailer_BuildMessage(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "localhost", Port: 587}, "noreply@firmadoc.example", logger.NewTestLogger(t))

	t.Run("multipart when both bodies present", func(t *testing.T) {
		raw := m.buildMessage(Message{
			To:       "mario.rossi@example.com",
			Subject:  "Test",
			TextBody: "plain body",
			HTMLBody: "<p>html body</p>",
		})

		assert.Contains(t, raw, "From: noreply@firmadoc.example\r\n")
		assert.Contains(t, raw, "To: mario.rossi@example.com\r\n")
		assert.Contains(t, raw, "Subject: Test\r\n")
		assert.Contains(t, raw, "multipart/alternative")
		assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8")
		assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8")
		assert.Contains(t, raw, "plain body")
		assert.Contains(t, raw, "<p>html body</p>")
	})

	t.Run("html only", func(t *testing.T) {
		raw := m.buildMessage(Message{To: "a@b.co", Subject: "S", HTMLBody: "<p>x</p>"})
		assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8")
		assert.NotContains(t, raw, "multipart/alternative")
	})

	t.Run("text only", func(t *testing.T) {
		raw := m.buildMessage(Message{To: "a@b.co", Subject: "S", TextBody: "x"})
		assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8")
		assert.NotContains(t, raw, "multipart/alternative")
	})
}
