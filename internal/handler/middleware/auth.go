package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/jwt"
)

// AuthMiddleware validates session tokens and stores the identity
// claims for downstream handlers.
func AuthMiddleware(tokenService *jwt.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization header",
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authorization header format",
			})
		}

		claims, err := tokenService.ValidateSession(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		c.Locals("account_id", claims.AccountID)
		c.Locals("email", claims.Email)
		c.Locals("role", claims.Role)
		c.Locals("organization_id", claims.OrganizationID)

		return c.Next()
	}
}
