package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/config"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/jwt"
)

func newTestOAuthService(t *testing.T, stateExpiry time.Duration) (*OAuthService, *jwt.TokenService) {
	t.Helper()

	tokens, err := jwt.NewTokenService([]byte("test-secret"), time.Hour, stateExpiry, "identity-service")
	require.NoError(t, err)

	cfg := &config.OAuthConfig{
		CallbackBaseURL: "https://console.example.com",
		SuccessURL:      "https://app.example.com/integrations?status=connected",
		ErrorURL:        "https://app.example.com/integrations?status=error",
		Providers: map[string]config.OAuthProviderConfig{
			"github": {ClientID: "gh-client", ClientSecret: "gh-secret"},
			"gitlab": {ClientID: "gl-client", ClientSecret: "gl-secret"},
		},
	}

	return NewOAuthService(newFakeIntegrationRepo(), tokens, newTestVault(t), cfg), tokens
}

func TestStartAuthorizationBuildsRedirect(t *testing.T) {
	svc, tokens := newTestOAuthService(t, 10*time.Minute)

	orgID := uuid.New()
	accountID := uuid.New()

	redirect, err := svc.StartAuthorization(orgID, accountID, "github")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(redirect, "https://github.com/login/oauth/authorize?"))

	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	query := parsed.Query()
	require.Equal(t, "gh-client", query.Get("client_id"))
	require.Equal(t, "https://console.example.com/api/v1/oauth/github/callback", query.Get("redirect_uri"))
	require.Equal(t, "code", query.Get("response_type"))
	require.NotEmpty(t, query.Get("scope"))

	claims, err := tokens.ValidateState(query.Get("state"))
	require.NoError(t, err)
	require.Equal(t, orgID, claims.OrganizationID)
	require.Equal(t, accountID, claims.AccountID)
	require.Equal(t, "github", claims.Provider)
}

func TestStartAuthorizationRejectsUnknownProvider(t *testing.T) {
	svc, _ := newTestOAuthService(t, 10*time.Minute)

	_, err := svc.StartAuthorization(uuid.New(), uuid.New(), "bitbucket")
	require.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestStartAuthorizationRejectsUnconfiguredProvider(t *testing.T) {
	svc, _ := newTestOAuthService(t, 10*time.Minute)

	// Slack is in the registry but has no client credentials here.
	_, err := svc.StartAuthorization(uuid.New(), uuid.New(), "slack")
	require.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestHandleCallbackRejectsForgedState(t *testing.T) {
	svc, _ := newTestOAuthService(t, 10*time.Minute)

	_, err := svc.HandleCallback(context.Background(), "github", "some-code", "not-a-signed-token")
	require.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestHandleCallbackRejectsExpiredState(t *testing.T) {
	svc, tokens := newTestOAuthService(t, -time.Minute)

	state, err := tokens.IssueState(uuid.New(), uuid.New(), "github")
	require.NoError(t, err)

	_, err = svc.HandleCallback(context.Background(), "github", "some-code", state)
	require.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestHandleCallbackRejectsProviderMismatch(t *testing.T) {
	svc, tokens := newTestOAuthService(t, 10*time.Minute)

	// State minted for gitlab must not redeem the github callback.
	state, err := tokens.IssueState(uuid.New(), uuid.New(), "gitlab")
	require.NoError(t, err)

	_, err = svc.HandleCallback(context.Background(), "github", "some-code", state)
	require.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestHandleCallbackRequiresCode(t *testing.T) {
	svc, tokens := newTestOAuthService(t, 10*time.Minute)

	state, err := tokens.IssueState(uuid.New(), uuid.New(), "github")
	require.NoError(t, err)

	_, err = svc.HandleCallback(context.Background(), "github", "", state)
	require.True(t, domain.IsKind(err, domain.KindValidation))
}
