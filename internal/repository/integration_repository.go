package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
)

// IntegrationRepository persists provider connections and their
// encrypted secrets. One integration per (organization, provider); one
// secret per integration.
type IntegrationRepository interface {
	// Upsert inserts the integration or, when the organization already
	// has one for the provider, replaces its configuration in place.
	Upsert(ctx context.Context, integration *domain.Integration) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Integration, error)
	GetByOrgAndProvider(ctx context.Context, organizationID uuid.UUID, provider string) (*domain.Integration, error)

	// Deactivate flips is_active off. Idempotent; deactivating an
	// already-inactive or missing integration is not an error.
	Deactivate(ctx context.Context, organizationID, id uuid.UUID) error

	SaveSecret(ctx context.Context, secret *domain.IntegrationSecret) error
	GetSecret(ctx context.Context, integrationID uuid.UUID) (*domain.IntegrationSecret, error)
	DeleteSecret(ctx context.Context, integrationID uuid.UUID) error
}
