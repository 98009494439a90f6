// Package email delivers the subsystem's transactional mail: one-time
// verification codes and the post-activation welcome note. Delivery is
// an injected capability; there is no package-level client.
package email

import (
	"context"
	"errors"
	"time"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
)

// ErrUnconfigured is returned by the Unconfigured mailer. Callers treat
// it as a delivery failure, not a crash.
var ErrUnconfigured = errors.New("email delivery is not configured")

// Mailer sends the two mail shapes the identity subsystem needs.
//
// SendOneTimeCode is dispatched exactly once per request; a failure must
// surface so the caller can roll back the pending state. SendWelcome is
// onboarding noise and may be retried internally.
type Mailer interface {
	SendOneTimeCode(ctx context.Context, to, code string, purpose domain.CodePurpose) error
	SendWelcome(ctx context.Context, to string) error
}

// Config holds mailer configuration.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// Unconfigured is the explicit "no transport" variant. Every send fails
// with ErrUnconfigured so pending reservations roll back cleanly.
type Unconfigured struct{}

func (Unconfigured) SendOneTimeCode(context.Context, string, string, domain.CodePurpose) error {
	return ErrUnconfigured
}

func (Unconfigured) SendWelcome(context.Context, string) error {
	return ErrUnconfigured
}
