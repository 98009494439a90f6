package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/service"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/validator"
)

type PasswordHandler struct {
	authService *service.AuthService
	validator   *validator.Validator
}

func NewPasswordHandler(authService *service.AuthService, validator *validator.Validator) *PasswordHandler {
	return &PasswordHandler{
		authService: authService,
		validator:   validator,
	}
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type resetCompleteRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// RequestReset issues a password-reset code.
// POST /api/v1/auth/password-reset/request
//
// Always answers 200 so the endpoint cannot be used to probe for
// registered emails.
func (h *PasswordHandler) RequestReset(c *fiber.Ctx) error {
	var req resetRequest
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

	if err := h.authService.RequestPasswordReset(c.Context(), req.Email); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "if the email is registered, a reset code has been sent",
	})
}

// VerifyCode checks a reset code without consuming it.
// POST /api/v1/auth/password-reset/verify-code
func (h *PasswordHandler) VerifyCode(c *fiber.Ctx) error {
	var req resetVerifyRequest
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

	if err := h.authService.VerifyPasswordResetCode(c.Context(), req.Email, req.Code); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"valid": true})
}

// CompleteReset consumes the code and installs the new password.
// POST /api/v1/auth/password-reset/complete
func (h *PasswordHandler) CompleteReset(c *fiber.Ctx) error {
	var req resetCompleteRequest
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

	if err := h.authService.CompletePasswordReset(c.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "password has been reset",
	})
}
