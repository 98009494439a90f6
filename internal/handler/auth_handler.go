package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/service"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/validator"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validator
}

func NewAuthHandler(authService *service.AuthService, validator *validator.Validator) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator,
	}
}

// Register handles account registration, both steps.
// POST /api/v1/auth/register
//
// Without twoFactorToken: creates the pending reservation, emails a
// code, and answers 202. With one: verifies, activates, and answers 200
// with a session.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
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

	resp, err := h.authService.Register(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	if resp.Status == service.StatusVerificationPending {
		return c.Status(fiber.StatusAccepted).JSON(resp)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// Login handles sign-in, both steps.
// POST /api/v1/auth/login
//
// A correct password without a code answers 403 with
// "verification_required" and a fresh emailed code.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		h.authService.RecordRejectedLogin(c.Context(), req.Email, c.IP())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		h.authService.RecordRejectedLogin(c.Context(), req.Email, c.IP())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp, err := h.authService.Login(c.Context(), req, c.IP())
	if err != nil {
		return respondError(c, err)
	}

	if resp.Status == service.StatusVerificationRequired {
		return c.Status(fiber.StatusForbidden).JSON(resp)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
