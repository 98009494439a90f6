package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/repository"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/vault"
)

// directProviders is the allow-list for the direct-credential path:
// systems that hand out key/secret pairs instead of running OAuth.
var directProviders = map[string]bool{
	"aws":        true,
	"azure":      true,
	"gcp":        true,
	"prometheus": true,
	"grafana":    true,
	"jenkins":    true,
}

// IntegrationService handles the non-OAuth credential path and hands
// decrypted credentials to downstream consumers.
type IntegrationService struct {
	integrations repository.IntegrationRepository
	vault        *vault.Vault
}

func NewIntegrationService(integrations repository.IntegrationRepository, credentialVault *vault.Vault) *IntegrationService {
	return &IntegrationService{
		integrations: integrations,
		vault:        credentialVault,
	}
}

type ConnectRequest struct {
	Provider    string            `json:"provider" validate:"required"`
	Credentials map[string]string `json:"credentials" validate:"required"`
	Name        string            `json:"name,omitempty"`
	Region      string            `json:"region,omitempty"`
	Scope       string            `json:"scope,omitempty"`
}

// Connect stores operator-supplied credentials through the vault. At
// least one non-empty credential field is required; nothing is written
// when validation fails.
func (s *IntegrationService) Connect(ctx context.Context, organizationID uuid.UUID, req ConnectRequest) (uuid.UUID, error) {
	if !directProviders[req.Provider] {
		return uuid.Nil, domain.Ef(domain.KindValidation, "unknown provider %q", req.Provider)
	}

	hasValue := false
	for _, v := range req.Credentials {
		if v != "" {
			hasValue = true
			break
		}
	}
	if !hasValue {
		return uuid.Nil, domain.E(domain.KindValidation, "at least one credential field is required")
	}

	ciphertext, err := s.vault.Encrypt(req.Credentials)
	if err != nil {
		return uuid.Nil, domain.Wrap(domain.KindVaultFailure, "failed to encrypt credentials", err)
	}

	name := req.Name
	if name == "" {
		name = req.Provider
	}

	integration := &domain.Integration{
		ID:               uuid.New(),
		OrganizationID:   organizationID,
		Provider:         req.Provider,
		Name:             name,
		ConnectionMethod: domain.ConnectionMethodDirect,
		IsActive:         true,
		CreatedAt:        time.Now(),
	}
	if req.Region != "" {
		integration.Region = &req.Region
	}
	if req.Scope != "" {
		integration.Scope = &req.Scope
	}

	if err := s.integrations.Upsert(ctx, integration); err != nil {
		return uuid.Nil, err
	}

	secret := &domain.IntegrationSecret{
		IntegrationID: integration.ID,
		Ciphertext:    ciphertext,
	}
	if err := s.integrations.SaveSecret(ctx, secret); err != nil {
		return uuid.Nil, err
	}

	log.Printf("[INTEGRATION_SERVICE] %s connected for organization %s", req.Provider, organizationID)
	return integration.ID, nil
}

// Disconnect deactivates the integration and deletes its secret.
// Idempotent; repeating it is a no-op.
func (s *IntegrationService) Disconnect(ctx context.Context, organizationID, integrationID uuid.UUID) error {
	if err := s.integrations.Deactivate(ctx, organizationID, integrationID); err != nil {
		return err
	}
	return s.integrations.DeleteSecret(ctx, integrationID)
}

// Credentials decrypts an integration's secret for a downstream
// consumer. A missing secret is "not configured" (NotFound); a blob
// that will not decrypt is "unusable" (VaultFailure) and the two are
// reported distinctly.
func (s *IntegrationService) Credentials(ctx context.Context, organizationID, integrationID uuid.UUID) (map[string]string, error) {
	integration, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if integration.OrganizationID != organizationID {
		return nil, domain.E(domain.KindNotFound, "integration not found")
	}
	if !integration.IsActive {
		return nil, domain.E(domain.KindNotFound, "integration is not active")
	}

	secret, err := s.integrations.GetSecret(ctx, integrationID)
	if err != nil {
		return nil, err
	}

	credentials, err := s.vault.Decrypt(secret.Ciphertext)
	if err != nil {
		return nil, domain.Wrap(domain.KindVaultFailure, "integration credentials are unusable", err)
	}

	return credentials, nil
}
