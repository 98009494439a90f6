package email

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
)

const welcomeMaxAttempts = 3

// ResendMailer implements Mailer on top of the Resend API.
type ResendMailer struct {
	client *resend.Client
	config *Config
}

func NewResendMailer(config *Config) (*ResendMailer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}
	if config.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	return &ResendMailer{
		client: resend.NewClient(config.APIKey),
		config: config,
	}, nil
}

// SendOneTimeCode delivers a verification code. One attempt only: the
// caller discards the pending state on failure, so retrying here would
// race a code the user can no longer redeem.
func (m *ResendMailer) SendOneTimeCode(ctx context.Context, to, code string, purpose domain.CodePurpose) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", m.config.FromName, m.config.FromEmail),
		To:      []string{to},
		Subject: codeSubject(purpose),
		Html:    OneTimeCodeTemplate(code, purpose),
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		log.Printf("[MAILER] Failed to send %s code to %s: %v", purpose, to, err)
		return fmt.Errorf("failed to send verification code: %w", err)
	}

	log.Printf("[MAILER] %s code sent to %s (ID: %s)", purpose, to, sent.Id)
	return nil
}

// SendWelcome delivers the onboarding mail with bounded retry and
// exponential backoff. A final failure is logged-and-returned; the
// account is already active and nothing rolls back on it.
func (m *ResendMailer) SendWelcome(ctx context.Context, to string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", m.config.FromName, m.config.FromEmail),
		To:      []string{to},
		Subject: "Welcome to the DevOps Console",
		Html:    WelcomeTemplate(),
	}

	var err error
	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= welcomeMaxAttempts; attempt++ {
		var sent *resend.SendEmailResponse
		sent, err = m.client.Emails.SendWithContext(ctx, params)
		if err == nil {
			log.Printf("[MAILER] Welcome email sent to %s (ID: %s)", to, sent.Id)
			return nil
		}

		log.Printf("[MAILER] Welcome email attempt %d/%d to %s failed: %v", attempt, welcomeMaxAttempts, to, err)
		if attempt < welcomeMaxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("failed to send welcome email: %w", err)
}

func codeSubject(purpose domain.CodePurpose) string {
	switch purpose {
	case domain.CodePurposePasswordReset:
		return "Your password reset code"
	default:
		return "Your verification code"
	}
}
