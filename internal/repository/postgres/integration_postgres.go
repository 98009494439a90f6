package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/repository"
)

type integrationRepository struct {
	db *sqlx.DB
}

// NewIntegrationRepository creates a PostgreSQL integration repository.
func NewIntegrationRepository(db *sqlx.DB) repository.IntegrationRepository {
	return &integrationRepository{db: db}
}

// Upsert inserts or replaces the organization's integration for a
// provider. The unique constraint on (organization_id, provider) makes
// the second connect for the same pair an update, not a duplicate.
func (r *integrationRepository) Upsert(ctx context.Context, integration *domain.Integration) error {
	integration.UpdatedAt = time.Now()

	query := `
		INSERT INTO integrations (
			id, organization_id, provider, name, region,
			connection_method, scope, is_active, created_at, updated_at
		) VALUES (
			:id, :organization_id, :provider, :name, :region,
			:connection_method, :scope, :is_active, :created_at, :updated_at
		)
		ON CONFLICT (organization_id, provider) DO UPDATE
		SET name = EXCLUDED.name,
			region = EXCLUDED.region,
			connection_method = EXCLUDED.connection_method,
			scope = EXCLUDED.scope,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, integration); err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}

	// Reload the id: on conflict the stored row keeps its original id.
	existing, err := r.GetByOrgAndProvider(ctx, integration.OrganizationID, integration.Provider)
	if err != nil {
		return err
	}
	integration.ID = existing.ID
	integration.CreatedAt = existing.CreatedAt

	return nil
}

// GetByID retrieves an integration by id.
func (r *integrationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Integration, error) {
	query := `
		SELECT id, organization_id, provider, name, region,
			   connection_method, scope, is_active, created_at, updated_at
		FROM integrations
		WHERE id = $1`

	var integration domain.Integration
	err := r.db.GetContext(ctx, &integration, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap(domain.KindNotFound, "integration not found", err)
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	return &integration, nil
}

// GetByOrgAndProvider retrieves an organization's integration for one
// provider.
func (r *integrationRepository) GetByOrgAndProvider(ctx context.Context, organizationID uuid.UUID, provider string) (*domain.Integration, error) {
	query := `
		SELECT id, organization_id, provider, name, region,
			   connection_method, scope, is_active, created_at, updated_at
		FROM integrations
		WHERE organization_id = $1 AND provider = $2`

	var integration domain.Integration
	err := r.db.GetContext(ctx, &integration, query, organizationID, provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap(domain.KindNotFound, "integration not found", err)
		}
		return nil, fmt.Errorf("failed to get integration by provider: %w", err)
	}

	return &integration, nil
}

// Deactivate flips is_active off. Zero affected rows means the
// integration was missing or already inactive; both are fine.
func (r *integrationRepository) Deactivate(ctx context.Context, organizationID, id uuid.UUID) error {
	query := `
		UPDATE integrations
		SET is_active = false,
			updated_at = $1
		WHERE id = $2 AND organization_id = $3`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), id, organizationID); err != nil {
		return fmt.Errorf("failed to deactivate integration: %w", err)
	}

	return nil
}

// SaveSecret stores the encrypted blob for an integration, replacing
// any previous one.
func (r *integrationRepository) SaveSecret(ctx context.Context, secret *domain.IntegrationSecret) error {
	secret.UpdatedAt = time.Now()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = secret.UpdatedAt
	}

	query := `
		INSERT INTO integration_secrets (integration_id, ciphertext, created_at, updated_at)
		VALUES (:integration_id, :ciphertext, :created_at, :updated_at)
		ON CONFLICT (integration_id) DO UPDATE
		SET ciphertext = EXCLUDED.ciphertext,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, secret); err != nil {
		return fmt.Errorf("failed to save integration secret: %w", err)
	}

	return nil
}

// GetSecret retrieves the encrypted blob for an integration.
func (r *integrationRepository) GetSecret(ctx context.Context, integrationID uuid.UUID) (*domain.IntegrationSecret, error) {
	query := `
		SELECT integration_id, ciphertext, created_at, updated_at
		FROM integration_secrets
		WHERE integration_id = $1`

	var secret domain.IntegrationSecret
	err := r.db.GetContext(ctx, &secret, query, integrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap(domain.KindNotFound, "integration secret not found", err)
		}
		return nil, fmt.Errorf("failed to get integration secret: %w", err)
	}

	return &secret, nil
}

// DeleteSecret removes the encrypted blob. Idempotent.
func (r *integrationRepository) DeleteSecret(ctx context.Context, integrationID uuid.UUID) error {
	query := `DELETE FROM integration_secrets WHERE integration_id = $1`

	if _, err := r.db.ExecContext(ctx, query, integrationID); err != nil {
		return fmt.Errorf("failed to delete integration secret: %w", err)
	}

	return nil
}
