package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/repository"
)

const uniqueViolation = "23505"

const accountColumns = `
	id, organization_id, email, password_hash, role, status,
	mfa_secret, mfa_method,
	one_time_code, one_time_code_purpose, one_time_code_expires_at,
	provider, provider_id,
	created_at, updated_at, last_login_at`

type accountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a PostgreSQL account repository.
func NewAccountRepository(db *sqlx.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// Create inserts a new account row.
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (
			id, organization_id, email, password_hash, role, status,
			mfa_secret, mfa_method,
			one_time_code, one_time_code_purpose, one_time_code_expires_at,
			provider, provider_id,
			created_at, updated_at, last_login_at
		) VALUES (
			:id, :organization_id, :email, :password_hash, :role, :status,
			:mfa_secret, :mfa_method,
			:one_time_code, :one_time_code_purpose, :one_time_code_expires_at,
			:provider, :provider_id,
			:created_at, :updated_at, :last_login_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, account)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Wrap(domain.KindConflict, "account already exists", err)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by id.
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	var account domain.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap(domain.KindNotFound, "account not found", err)
		}
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}

	return &account, nil
}

// GetActiveByEmail retrieves the active account holding an email.
func (r *accountRepository) GetActiveByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getByEmailAndStatus(ctx, email, domain.AccountStatusActive)
}

// GetPendingByEmail retrieves the pending reservation for an email.
func (r *accountRepository) GetPendingByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getByEmailAndStatus(ctx, email, domain.AccountStatusPending)
}

func (r *accountRepository) getByEmailAndStatus(ctx context.Context, email string, status domain.AccountStatus) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 AND status = $2`

	var account domain.Account
	err := r.db.GetContext(ctx, &account, query, email, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap(domain.KindNotFound, "account not found", err)
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return &account, nil
}

// ReservePending creates the pending reservation for a registration
// attempt. Any earlier pending row for the email is deleted first (last
// writer wins for the pending slot), so only one one-time code is ever
// valid per email. The partial unique indexes back this against
// concurrency: the active-email index catches a racing activation, and
// the pending-email index makes the loser of two simultaneous
// registrations fail with a conflict instead of inserting a second
// reservation the DELETE could not see.
func (r *accountRepository) ReservePending(ctx context.Context, account *domain.Account) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var activeExists bool
	err = tx.GetContext(ctx, &activeExists,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1 AND status = $2)`,
		account.Email, domain.AccountStatusActive)
	if err != nil {
		return fmt.Errorf("failed to check for active account: %w", err)
	}
	if activeExists {
		return domain.E(domain.KindConflict, "an account with this email already exists")
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM accounts WHERE email = $1 AND status = $2`,
		account.Email, domain.AccountStatusPending)
	if err != nil {
		return fmt.Errorf("failed to clear stale pending account: %w", err)
	}

	query := `
		INSERT INTO accounts (
			id, organization_id, email, password_hash, role, status,
			mfa_secret, mfa_method,
			one_time_code, one_time_code_purpose, one_time_code_expires_at,
			provider, provider_id,
			created_at, updated_at, last_login_at
		) VALUES (
			:id, :organization_id, :email, :password_hash, :role, :status,
			:mfa_secret, :mfa_method,
			:one_time_code, :one_time_code_purpose, :one_time_code_expires_at,
			:provider, :provider_id,
			:created_at, :updated_at, :last_login_at
		)`

	if _, err = tx.NamedExecContext(ctx, query, account); err != nil {
		if isUniqueViolation(err) {
			return domain.Wrap(domain.KindConflict, "an account with this email already exists", err)
		}
		return fmt.Errorf("failed to reserve pending account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return domain.Wrap(domain.KindConflict, "an account with this email already exists", err)
		}
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	return nil
}

// Activate flips a pending reservation to active, clears the transient
// verification columns, and stamps last-login.
func (r *accountRepository) Activate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE accounts
		SET status = $1,
			one_time_code = NULL,
			one_time_code_purpose = NULL,
			one_time_code_expires_at = NULL,
			last_login_at = $2,
			updated_at = $2
		WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query,
		domain.AccountStatusActive, time.Now(), id, domain.AccountStatusPending)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Wrap(domain.KindConflict, "an active account with this email already exists", err)
		}
		return fmt.Errorf("failed to activate account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.E(domain.KindNotFound, "pending account not found")
	}

	return nil
}

// DiscardPending deletes a pending reservation. Active accounts are
// never deleted through this path.
func (r *accountRepository) DiscardPending(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM accounts WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, id, domain.AccountStatusPending)
	if err != nil {
		return fmt.Errorf("failed to discard pending account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.E(domain.KindNotFound, "pending account not found")
	}

	return nil
}

// Update writes the mutable account columns.
func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	account.UpdatedAt = time.Now()

	query := `
		UPDATE accounts
		SET email = :email,
			password_hash = :password_hash,
			role = :role,
			status = :status,
			mfa_secret = :mfa_secret,
			mfa_method = :mfa_method,
			one_time_code = :one_time_code,
			one_time_code_purpose = :one_time_code_purpose,
			one_time_code_expires_at = :one_time_code_expires_at,
			provider = :provider,
			provider_id = :provider_id,
			updated_at = :updated_at,
			last_login_at = :last_login_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, account)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.E(domain.KindNotFound, "account not found")
	}

	return nil
}

// UpdateLastLogin stamps the last-login timestamp.
func (r *accountRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE accounts
		SET last_login_at = $1,
			updated_at = $1
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.E(domain.KindNotFound, "account not found")
	}

	return nil
}

// SetOneTimeCode stores a freshly issued code, replacing any previous
// one regardless of purpose.
func (r *accountRepository) SetOneTimeCode(ctx context.Context, id uuid.UUID, code domain.OneTimeCode) error {
	query := `
		UPDATE accounts
		SET one_time_code = $1,
			one_time_code_purpose = $2,
			one_time_code_expires_at = $3,
			updated_at = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		code.Value, string(code.Purpose), code.ExpiresAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set one-time code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.E(domain.KindNotFound, "account not found")
	}

	return nil
}

// ClearOneTimeCode drops any outstanding code without consuming it.
func (r *accountRepository) ClearOneTimeCode(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE accounts
		SET one_time_code = NULL,
			one_time_code_purpose = NULL,
			one_time_code_expires_at = NULL,
			updated_at = $1
		WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to clear one-time code: %w", err)
	}

	return nil
}

// ConsumeOneTimeCode accepts and clears a code in one statement. The
// WHERE clause carries the match, the purpose, and the expiry, so a
// second submission of the same code (or a code issued for another
// purpose) affects zero rows.
func (r *accountRepository) ConsumeOneTimeCode(ctx context.Context, id uuid.UUID, value string, purpose domain.CodePurpose) (bool, error) {
	query := `
		UPDATE accounts
		SET one_time_code = NULL,
			one_time_code_purpose = NULL,
			one_time_code_expires_at = NULL,
			updated_at = $1
		WHERE id = $2
		  AND one_time_code = $3
		  AND one_time_code_purpose = $4
		  AND one_time_code_expires_at > $1`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id, value, string(purpose))
	if err != nil {
		return false, fmt.Errorf("failed to consume one-time code: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// BackfillMFASecrets assigns a generated secret to every account whose
// mfa_secret is missing. Re-running it is a no-op once all rows carry
// one.
func (r *accountRepository) BackfillMFASecrets(ctx context.Context, gen func() (string, error)) (int, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM accounts WHERE mfa_secret IS NULL OR mfa_secret = ''`)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts missing MFA secrets: %w", err)
	}

	updated := 0
	for _, id := range ids {
		secret, err := gen()
		if err != nil {
			return updated, fmt.Errorf("failed to generate MFA secret: %w", err)
		}

		_, err = r.db.ExecContext(ctx,
			`UPDATE accounts SET mfa_secret = $1, updated_at = $2 WHERE id = $3 AND (mfa_secret IS NULL OR mfa_secret = '')`,
			secret, time.Now(), id)
		if err != nil {
			return updated, fmt.Errorf("failed to backfill MFA secret: %w", err)
		}
		updated++
	}

	return updated, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
