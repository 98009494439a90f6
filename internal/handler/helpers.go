package handler

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
)

// respondError maps the error taxonomy to HTTP statuses in one place.
// Unknown errors become opaque 500s; the detail stays in the log.
func respondError(c *fiber.Ctx, err error) error {
	var status int
	var message string

	switch domain.KindOf(err) {
	case domain.KindValidation:
		status, message = fiber.StatusBadRequest, err.Error()
	case domain.KindConflict:
		status, message = fiber.StatusConflict, err.Error()
	case domain.KindUnauthorized:
		status, message = fiber.StatusUnauthorized, err.Error()
	case domain.KindNotFound:
		status, message = fiber.StatusNotFound, err.Error()
	case domain.KindDeliveryFailure:
		status, message = fiber.StatusServiceUnavailable, err.Error()
	case domain.KindUpstream:
		status, message = fiber.StatusBadGateway, err.Error()
	case domain.KindVaultFailure:
		status, message = fiber.StatusInternalServerError, "credential operation failed"
		log.Printf("[HANDLER] Vault failure on %s %s: %v", c.Method(), c.Path(), err)
	default:
		status, message = fiber.StatusInternalServerError, "internal server error"
		log.Printf("[HANDLER] Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}
