package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionToken is a minted session with its expiry.
type SessionToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"`
}

// Claims is the session token payload. Exactly these four identity
// fields, nothing else leaves the subsystem.
type Claims struct {
	jwt.RegisteredClaims
	AccountID      uuid.UUID `json:"uid"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	OrganizationID uuid.UUID `json:"org_id"`
}

// StateClaims is the OAuth anti-CSRF state token payload. It binds a
// provider callback to the organization, user, and provider that
// started the authorization, for the 10 minutes the token lives.
type StateClaims struct {
	jwt.RegisteredClaims
	OrganizationID uuid.UUID `json:"org_id"`
	AccountID      uuid.UUID `json:"uid"`
	Provider       string    `json:"provider"`
}
