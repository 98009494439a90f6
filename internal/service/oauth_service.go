package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/config"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/repository"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/jwt"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/vault"
)

// ProviderConfig is the static shape of one OAuth provider: endpoints,
// scope, and whether its token endpoint wants an explicit JSON Accept
// header.
type ProviderConfig struct {
	AuthorizeURL string
	TokenURL     string
	Scope        string
	AcceptJSON   bool
}

// providers is the registry of supported OAuth providers. Client
// credentials come from configuration; everything here is fixed.
var providers = map[string]ProviderConfig{
	"github": {
		AuthorizeURL: "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		Scope:        "repo read:org",
		AcceptJSON:   true,
	},
	"gitlab": {
		AuthorizeURL: "https://gitlab.com/oauth/authorize",
		TokenURL:     "https://gitlab.com/oauth/token",
		Scope:        "api",
	},
	"slack": {
		AuthorizeURL: "https://slack.com/oauth/v2/authorize",
		TokenURL:     "https://slack.com/api/oauth.v2.access",
		Scope:        "chat:write channels:read",
	},
}

// OAuthService runs the authorization-code flow against third-party
// providers and lands the resulting token material in the vault.
type OAuthService struct {
	integrations repository.IntegrationRepository
	tokens       *jwt.TokenService
	vault        *vault.Vault
	cfg          *config.OAuthConfig
	client       *http.Client
}

func NewOAuthService(
	integrations repository.IntegrationRepository,
	tokens *jwt.TokenService,
	credentialVault *vault.Vault,
	cfg *config.OAuthConfig,
) *OAuthService {
	return &OAuthService{
		integrations: integrations,
		tokens:       tokens,
		vault:        credentialVault,
		cfg:          cfg,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

// StartAuthorization builds the provider redirect URL with a signed
// state token binding this organization, user, and provider to the
// callback for the next 10 minutes.
func (s *OAuthService) StartAuthorization(organizationID, accountID uuid.UUID, provider string) (string, error) {
	pc, ok := providers[provider]
	if !ok {
		return "", domain.Ef(domain.KindValidation, "unknown provider %q", provider)
	}

	creds, ok := s.cfg.Providers[provider]
	if !ok || creds.ClientID == "" || creds.ClientSecret == "" {
		return "", domain.Ef(domain.KindValidation, "provider %q is not configured", provider)
	}

	state, err := s.tokens.IssueState(organizationID, accountID, provider)
	if err != nil {
		return "", fmt.Errorf("failed to sign state token: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", creds.ClientID)
	params.Set("redirect_uri", s.callbackURL(provider))
	params.Set("scope", pc.Scope)
	params.Set("state", state)
	params.Set("response_type", "code")

	return pc.AuthorizeURL + "?" + params.Encode(), nil
}

// HandleCallback verifies the state token and exchanges the code. The
// returned URL is where the browser should land: forged or expired
// state is a hard error, while a provider-side rejection redirects to
// the error landing page instead.
func (s *OAuthService) HandleCallback(ctx context.Context, provider, code, state string) (string, error) {
	pc, ok := providers[provider]
	if !ok {
		return "", domain.Ef(domain.KindValidation, "unknown provider %q", provider)
	}

	claims, err := s.tokens.ValidateState(state)
	if err != nil {
		return "", domain.Wrap(domain.KindValidation, "invalid or expired state token", err)
	}

	// A state token minted for one provider must not redeem another
	// provider's callback.
	if claims.Provider != provider {
		return "", domain.E(domain.KindValidation, "state token does not match provider")
	}

	if code == "" {
		return "", domain.E(domain.KindValidation, "missing authorization code")
	}

	tokenData, err := s.exchangeCode(ctx, provider, pc, code)
	if err != nil {
		log.Printf("[OAUTH_SERVICE] Token exchange with %s failed: %v", provider, err)
		return s.cfg.ErrorURL, nil
	}

	integration := &domain.Integration{
		ID:               uuid.New(),
		OrganizationID:   claims.OrganizationID,
		Provider:         provider,
		Name:             provider,
		ConnectionMethod: domain.ConnectionMethodOAuth,
		IsActive:         true,
		CreatedAt:        time.Now(),
	}
	if scope := tokenData["scope"]; scope != "" {
		integration.Scope = &scope
	}

	if err := s.integrations.Upsert(ctx, integration); err != nil {
		return "", err
	}

	ciphertext, err := s.vault.Encrypt(tokenData)
	if err != nil {
		return "", domain.Wrap(domain.KindVaultFailure, "failed to encrypt provider token", err)
	}

	secret := &domain.IntegrationSecret{
		IntegrationID: integration.ID,
		Ciphertext:    ciphertext,
	}
	if err := s.integrations.SaveSecret(ctx, secret); err != nil {
		return "", err
	}

	log.Printf("[OAUTH_SERVICE] %s connected for organization %s", provider, claims.OrganizationID)
	return s.cfg.SuccessURL, nil
}

// tokenResponse is the provider token endpoint payload. GitHub, GitLab,
// and Slack all speak this shape (Slack nests extras we don't need).
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// exchangeCode swaps the authorization code for a provider token with a
// server-to-server form POST.
func (s *OAuthService) exchangeCode(ctx context.Context, provider string, pc ProviderConfig, code string) (map[string]string, error) {
	creds := s.cfg.Providers[provider]

	form := url.Values{}
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", s.callbackURL(provider))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if pc.AcceptJSON {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstream, "token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Ef(domain.KindUpstream, "token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, domain.Wrap(domain.KindUpstream, "malformed token response", err)
	}
	if tr.Error != "" {
		return nil, domain.Ef(domain.KindUpstream, "provider rejected exchange: %s %s", tr.Error, tr.ErrorDescription)
	}
	if tr.AccessToken == "" {
		return nil, domain.E(domain.KindUpstream, "provider returned no access token")
	}

	tokenData := map[string]string{
		"access_token": tr.AccessToken,
		"token_type":   tr.TokenType,
		"scope":        tr.Scope,
	}
	if tr.RefreshToken != "" {
		tokenData["refresh_token"] = tr.RefreshToken
	}

	return tokenData, nil
}

func (s *OAuthService) callbackURL(provider string) string {
	return fmt.Sprintf("%s/api/v1/oauth/%s/callback", s.cfg.CallbackBaseURL, provider)
}
