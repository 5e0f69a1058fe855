// ABOUTME: Tests for SES mail delivery using a fake SES API
// ABOUTME: Verifies message construction and error propagation

package mail

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	sent []*sesv2.SendEmailInput
	err  error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESMailer_Send(t *testing.T) {
	fake := &fakeSES{}
	mailer := &SESMailer{api: fake, from: "noreply@example.com", logger: slog.Default()}

	err := mailer.Send(context.Background(), "alice@example.com", "Password reset", "Click the link")
	require.NoError(t, err)

	require.Len(t, fake.sent, 1)
	in := fake.sent[0]
	assert.Equal(t, "noreply@example.com", *in.FromEmailAddress)
	assert.Equal(t, []string{"alice@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Password reset", *in.Content.Simple.Subject.Data)
	assert.Equal(t, "Click the link", *in.Content.Simple.Body.Text.Data)
}

func TestSESMailer_SendError(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	mailer := &SESMailer{api: fake, from: "noreply@example.com", logger: slog.Default()}

	err := mailer.Send(context.Background(), "alice@example.com", "subject", "body")
	assert.Error(t, err)
}

func TestNopMailer(t *testing.T) {
	assert.NoError(t, NopMailer{}.Send(context.Background(), "x@example.com", "s", "b"))
}
