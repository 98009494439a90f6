package domain

import (
	"time"

	"github.com/google/uuid"
)

// Integration is a configured connection to one third-party provider for
// one organization. At most one exists per (organization, provider) pair.
type Integration struct {
	ID               uuid.UUID `json:"id" db:"id"`
	OrganizationID   uuid.UUID `json:"organization_id" db:"organization_id"`
	Provider         string    `json:"provider" db:"provider"`
	Name             string    `json:"name" db:"name"`
	Region           *string   `json:"region,omitempty" db:"region"`
	ConnectionMethod string    `json:"connection_method" db:"connection_method"`
	Scope            *string   `json:"scope,omitempty" db:"scope"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// ConnectionMethod values.
const (
	ConnectionMethodOAuth  = "oauth"
	ConnectionMethodDirect = "direct"
)

// IntegrationSecret holds the encrypted credential blob for an
// integration. Exactly one per integration, never plaintext.
type IntegrationSecret struct {
	IntegrationID uuid.UUID `json:"integration_id" db:"integration_id"`
	Ciphertext    string    `json:"-" db:"ciphertext"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
