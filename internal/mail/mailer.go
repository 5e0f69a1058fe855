// ABOUTME: Outbound email delivery for chatd via Amazon SES
// ABOUTME: Fire-and-forget notification sink with a no-op fallback

package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Mailer sends transactional email. Delivery is best-effort; callers log
// failures but never fail the triggering request on a mail error.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// sesAPI is the minimal SES interface required by SESMailer.
// *sesv2.Client from aws-sdk-go-v2 satisfies this interface.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends email through Amazon SES.
type SESMailer struct {
	api    sesAPI
	from   string
	logger *slog.Logger
}

// NewSESMailer creates a mailer using the default AWS credential chain.
func NewSESMailer(ctx context.Context, region, from string) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESMailer{
		api:    sesv2.NewFromConfig(cfg),
		from:   from,
		logger: slog.Default().With("component", "mail"),
	}, nil
}

// Send delivers one plain-text email.
func (m *SESMailer) Send(ctx context.Context, to, subject, body string) error {
	_, err := m.api.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	m.logger.Debug("email sent", "to", to, "subject", subject)
	return nil
}

// NopMailer discards all email. Used when mail is disabled in config.
type NopMailer struct{}

// Send discards the message.
func (NopMailer) Send(ctx context.Context, to, subject, body string) error {
	return nil
}
