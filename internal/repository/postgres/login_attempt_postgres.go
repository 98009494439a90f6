package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/repository"
)

type loginAttemptRepository struct {
	db *sqlx.DB
}

// NewLoginAttemptRepository creates a PostgreSQL login-attempt
// repository.
func NewLoginAttemptRepository(db *sqlx.DB) repository.LoginAttemptRepository {
	return &loginAttemptRepository{db: db}
}

// Record appends one attempt to the audit trail.
func (r *loginAttemptRepository) Record(ctx context.Context, attempt *domain.LoginAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO login_attempts (id, email, source_ip, succeeded, created_at)
		VALUES (:id, :email, :source_ip, :succeeded, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	return nil
}

// ListByEmail returns the newest attempts for an email.
func (r *loginAttemptRepository) ListByEmail(ctx context.Context, email string, limit int) ([]*domain.LoginAttempt, error) {
	query := `
		SELECT id, email, source_ip, succeeded, created_at
		FROM login_attempts
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var attempts []*domain.LoginAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, email, limit); err != nil {
		return nil, fmt.Errorf("failed to list login attempts: %w", err)
	}

	return attempts, nil
}
