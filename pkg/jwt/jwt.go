package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
)

var (
	ErrInvalidSigningMethod = errors.New("unexpected signing method")
	ErrInvalidToken         = errors.New("invalid token")
	ErrEmptySecret          = errors.New("signing secret is required")
)

// TokenService signs and verifies the two token families the subsystem
// mints: 24-hour session tokens and 10-minute OAuth state tokens. Both
// use the same HS256 signing secret.
type TokenService struct {
	secret        []byte
	sessionExpiry time.Duration
	stateExpiry   time.Duration
	issuer        string
}

func NewTokenService(secret []byte, sessionExpiry, stateExpiry time.Duration, issuer string) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	return &TokenService{
		secret:        secret,
		sessionExpiry: sessionExpiry,
		stateExpiry:   stateExpiry,
		issuer:        issuer,
	}, nil
}

// IssueSession mints a session token carrying exactly the four identity
// claims: account id, email, role, organization id.
func (s *TokenService) IssueSession(accountID uuid.UUID, email, role string, organizationID uuid.UUID) (*domain.SessionToken, error) {
	now := time.Now()
	expiresAt := now.Add(s.sessionExpiry)

	claims := domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		AccountID:      accountID,
		Email:          email,
		Role:           role,
		OrganizationID: organizationID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	return &domain.SessionToken{
		Token:     signed,
		ExpiresAt: expiresAt,
		TokenType: "Bearer",
	}, nil
}

// ValidateSession parses and verifies a session token. Expired or
// tampered tokens are rejected.
func (s *TokenService) ValidateSession(tokenString string) (*domain.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &domain.Claims{}, s.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*domain.Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// IssueState mints a short-lived OAuth state token binding the redirect
// to the organization, user, and provider that started it.
func (s *TokenService) IssueState(organizationID, accountID uuid.UUID, provider string) (string, error) {
	now := time.Now()

	claims := domain.StateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.stateExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		OrganizationID: organizationID,
		AccountID:      accountID,
		Provider:       provider,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateState verifies a state token's signature and expiry. Provider
// matching against the callback path is the caller's job.
func (s *TokenService) ValidateState(tokenString string) (*domain.StateClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &domain.StateClaims{}, s.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*domain.StateClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidSigningMethod
	}
	return s.secret, nil
}
