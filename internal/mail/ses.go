// internal/mail/ses.go
package mail

import (
	"context"
	"fmt"

	"firmadoc-engine/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the subset of the SES client we call, split out for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer delivers mail through AWS SES.
type SESMailer struct {
	client SESService
	from   string
	logger logger.Logger
}

func NewSESMailer(ctx context.Context, region, from string, log logger.Logger) (*SESMailer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &SESMailer{
		client: ses.NewFromConfig(awsCfg),
		from:   from,
		logger: log.WithFields(map[string]interface{}{"mailer": "ses"}),
	}, nil
}

// NewSESMailerWithClient injects a prebuilt client (used by tests).
func NewSESMailerWithClient(client SESService, from string, log logger.Logger) *SESMailer {
	return &SESMailer{client: client, from: from, logger: log}
}

func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	body := &types.Body{}
	if msg.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
	}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("SES send failed: %w", err)
	}

	m.logger.Info("email sent", map[string]interface{}{
		"to":        msg.To,
		"subject":   msg.Subject,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}
