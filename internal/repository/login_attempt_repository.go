package repository

import (
	"context"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
)

// LoginAttemptRepository is the append-only audit trail of login
// attempts. Rows are written, listed, and never mutated.
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *domain.LoginAttempt) error
	ListByEmail(ctx context.Context, email string, limit int) ([]*domain.LoginAttempt, error)
}
