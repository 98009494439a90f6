package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/service"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/validator"
)

type IntegrationHandler struct {
	integrationService *service.IntegrationService
	validator          *validator.Validator
}

func NewIntegrationHandler(integrationService *service.IntegrationService, validator *validator.Validator) *IntegrationHandler {
	return &IntegrationHandler{
		integrationService: integrationService,
		validator:          validator,
	}
}

// Connect stores operator-supplied credentials for a non-OAuth
// provider.
// POST /api/v1/integrations/connect (authenticated)
func (h *IntegrationHandler) Connect(c *fiber.Ctx) error {
	organizationID, ok := c.Locals("organization_id").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	var req service.ConnectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	integrationID, err := h.integrationService.Connect(c.Context(), organizationID, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"integration_id": integrationID,
	})
}

// Disconnect deactivates an integration and deletes its secret.
// POST /api/v1/integrations/:id/disconnect (authenticated)
func (h *IntegrationHandler) Disconnect(c *fiber.Ctx) error {
	organizationID, ok := c.Locals("organization_id").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	integrationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid integration id",
		})
	}

	if err := h.integrationService.Disconnect(c.Context(), organizationID, integrationID); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "integration disconnected",
	})
}
