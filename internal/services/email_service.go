package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/dustin/go-humanize"

	pkglogger "github.com/BradenHooton/lockguard/pkg/logger"
)

// EmailService defines the interface for sending lockout emails
type EmailService interface {
	SendLockoutNotification(ctx context.Context, email string, attempts int, expiresAt *time.Time) error
}

// SESAPI is the subset of the SES client used for sending mail
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   SESAPI
	fromAddress string
	supportURL  string
	logger      *slog.Logger
	now         func() time.Time
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, supportURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, supportURL, logger), nil
}

// NewSESEmailServiceWithClient builds the service around an existing SES client
func NewSESEmailServiceWithClient(client SESAPI, fromAddress, supportURL string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		supportURL:  supportURL,
		logger:      logger,
		now:         time.Now,
	}
}

// SendLockoutNotification tells the account owner their account was locked
func (s *AWSSESEmailService) SendLockoutNotification(ctx context.Context, email string, attempts int, expiresAt *time.Time) error {
	until := "until an administrator unlocks it"
	if expiresAt != nil {
		until = "until " + expiresAt.UTC().Format(time.RFC1123) + " (" + humanize.RelTime(*expiresAt, s.now(), "ago", "from now") + ")"
	}

	textBody := fmt.Sprintf(`Your account has been locked

We blocked sign-in to your account after %s failed login attempts.
The account will stay locked %s.

If this was you, wait for the lock to expire or contact support.
If it was not you, someone may be trying to guess your password. Consider changing it once the lock is lifted.

%s

This is an automated message. Please do not reply to this email.
`, humanize.Comma(int64(attempts)), until, s.supportURL)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your account has been locked"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send lockout email via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("lockout email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
