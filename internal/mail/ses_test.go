// internal/mail/ses_test.go
package mail

import (
	"context"
	"errors"
	"testing"

	"firmadoc-engine/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSESClient struct {
	lastInput *ses.SendEmailInput
	err       error
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.lastInput = params
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-001")}, nil
}

func TestSESMailer_Send(t *testing.T) {
	client := &mockSESClient{}
	m := NewSESMailerWithClient(client, "noreply@firmadoc.example", logger.NewTestLogger(t))

	err := m.Send(context.Background(), Message{
		To:       "mario.rossi@example.com",
		Subject:  "Test",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
	})
	require.NoError(t, err)

	in := client.lastInput
	require.NotNil(t, in)
	assert.Equal(t, "noreply@firmadoc.example", aws.ToString(in.Source))
	assert.Equal(t, []string{"mario.rossi@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Test", aws.ToString(in.Message.Subject.Data))
	assert.Equal(t, "plain", aws.ToString(in.Message.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(in.Message.Body.Html.Data))
}

func TestSESMailer_Send_TextOnly(t *testing.T) {
	client := &mockSESClient{}
	m := NewSESMailerWithClient(client, "noreply@firmadoc.example", logger.NewTestLogger(t))

	err := m.Send(context.Background(), Message{To: "a@b.co", Subject: "S", TextBody: "x"})
	require.NoError(t, err)
	assert.Nil(t, client.lastInput.Message.Body.Html)
}

func TestSESMailer_Send_Error(t *testing.T) {
	client := &mockSESClient{err: errors.New("throttled")}
	m := NewSESMailerWithClient(client, "noreply@firmadoc.example", logger.NewTestLogger(t))

	err := m.Send(context.Background(), Message{To: "a@b.co", Subject: "S", TextBody: "x"})
	assert.Error(t, err)
}
