package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
)

// AccountRepository is the identity store. Pending rows are disposable
// reservations; active rows are permanent (deactivated, never deleted).
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetActiveByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetPendingByEmail(ctx context.Context, email string) (*domain.Account, error)

	// ReservePending replaces any stale pending row for the email and
	// inserts the new reservation. Fails with a Conflict when an active
	// account already holds the email.
	ReservePending(ctx context.Context, account *domain.Account) error

	// Activate transitions pending to active, clears the one-time-code
	// columns, and stamps last-login.
	Activate(ctx context.Context, id uuid.UUID) error

	// DiscardPending removes a reservation so the email can be retried.
	DiscardPending(ctx context.Context, id uuid.UUID) error

	Update(ctx context.Context, account *domain.Account) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error

	SetOneTimeCode(ctx context.Context, id uuid.UUID, code domain.OneTimeCode) error
	ClearOneTimeCode(ctx context.Context, id uuid.UUID) error

	// ConsumeOneTimeCode clears the code atomically with acceptance.
	// Returns false when the stored code does not match the supplied
	// value+purpose, is expired, or was already consumed.
	ConsumeOneTimeCode(ctx context.Context, id uuid.UUID, value string, purpose domain.CodePurpose) (bool, error)

	// BackfillMFASecrets assigns a secret from gen to every account that
	// lacks one. Idempotent; safe to run at every startup.
	BackfillMFASecrets(ctx context.Context, gen func() (string, error)) (int, error)
}
