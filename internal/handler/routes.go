package handler

import (
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(
	app *fiber.App,
	authHandler *AuthHandler,
	passwordHandler *PasswordHandler,
	oauthHandler *OAuthHandler,
	integrationHandler *IntegrationHandler,
	healthHandler *HealthHandler,
	authMiddleware fiber.Handler,
) {
	// Health checks (public)
	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)

	// API v1
	api := app.Group("/api/v1")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/password-reset/request", passwordHandler.RequestReset)
	auth.Post("/password-reset/verify-code", passwordHandler.VerifyCode)
	auth.Post("/password-reset/complete", passwordHandler.CompleteReset)

	// OAuth connector: start requires a session, the callback is
	// authenticated by its state token.
	oauth := api.Group("/oauth")
	oauth.Get("/:provider/start", authMiddleware, oauthHandler.Start)
	oauth.Get("/:provider/callback", oauthHandler.Callback)

	// Integrations (protected)
	integrations := api.Group("/integrations", authMiddleware)
	integrations.Post("/connect", integrationHandler.Connect)
	integrations.Post("/:id/disconnect", integrationHandler.Disconnect)
}
