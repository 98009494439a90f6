package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/service"
)

type OAuthHandler struct {
	oauthService *service.OAuthService
}

func NewOAuthHandler(oauthService *service.OAuthService) *OAuthHandler {
	return &OAuthHandler{oauthService: oauthService}
}

// Start begins the authorization-code flow for the caller's
// organization.
// GET /api/v1/oauth/:provider/start (authenticated)
func (h *OAuthHandler) Start(c *fiber.Ctx) error {
	accountID, ok := c.Locals("account_id").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}
	organizationID, ok := c.Locals("organization_id").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	redirectURL, err := h.oauthService.StartAuthorization(organizationID, accountID, c.Params("provider"))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"redirect_url": redirectURL,
	})
}

// Callback receives the provider redirect. The state token, not a
// session, authenticates this request.
// GET /api/v1/oauth/:provider/callback (public)
func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	landing, err := h.oauthService.HandleCallback(
		c.Context(),
		c.Params("provider"),
		c.Query("code"),
		c.Query("state"),
	)
	if err != nil {
		return respondError(c, err)
	}

	return c.Redirect(landing, fiber.StatusFound)
}
