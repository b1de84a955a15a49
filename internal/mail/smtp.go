// internal/mail/smtp.go
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"firmadoc-engine/internal/common/config"
	"firmadoc-engine/internal/common/logger"
)

// SMTPMailer delivers mail through a plain or STARTTLS SMTP relay.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	from   string
	logger logger.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, from string, log logger.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		from:   from,
		logger: log.WithFields(map[string]interface{}{"mailer": "smtp"}),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before sending email: %w", err)
	}

	if !isValidEmail(msg.To) {
		return fmt.Errorf("invalid 'to' email address: %s", msg.To)
	}

	message := m.buildMessage(msg)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var err error
	if m.cfg.UseTLS {
		err = m.sendWithTLS(addr, auth, msg.To, []byte(message))
	} else {
		err = smtp.SendMail(addr, auth, m.from, []string{msg.To}, []byte(message))
	}
	if err != nil {
		return err
	}

	m.logger.Info("email sent", map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
	})
	return nil
}

// buildMessage assembles MIME headers and body. When both text and HTML
// bodies are present a multipart/alternative envelope is used.
func (m *SMTPMailer) buildMessage(msg Message) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("From: %s\r\n", m.from))
	builder.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	builder.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	builder.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case msg.HTMLBody != "" && msg.TextBody != "":
		boundary := "firmadoc-alt"
		builder.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary))
		builder.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		builder.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		builder.WriteString(msg.TextBody)
		builder.WriteString(fmt.Sprintf("\r\n--%s\r\n", boundary))
		builder.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		builder.WriteString(msg.HTMLBody)
		builder.WriteString(fmt.Sprintf("\r\n--%s--\r\n", boundary))
	case msg.HTMLBody != "":
		builder.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		builder.WriteString(msg.HTMLBody)
	default:
		builder.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		builder.WriteString(msg.TextBody)
	}

	return builder.String()
}

func (m *SMTPMailer) sendWithTLS(addr string, auth smtp.Auth, to string, body []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName:         m.cfg.Host,
		InsecureSkipVerify: false,
	}

	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(m.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err = w.Write(body); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

func isValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	if len(parts[0]) == 0 || len(parts[1]) == 0 {
		return false
	}
	if !strings.Contains(parts[1], ".") {
		return false
	}
	return true
}
