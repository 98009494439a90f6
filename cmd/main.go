package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/config"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/handler"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/handler/middleware"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/repository/postgres"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/service"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/email"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/jwt"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/throttle"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/validator"
	"github.com/BarunKrMishra/devops-ai-platform-sub000/pkg/vault"
)

func main() {
	// Load configuration; missing secrets outside development abort here.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}()
	log.Println("✓ Database connection established")

	// Initialize Redis client
	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v", err)
		}
	}()
	log.Println("✓ Redis connection established")

	// Initialize the credential vault
	masterKey, err := cfg.MasterKey()
	if err != nil {
		if cfg.Server.Environment != "development" {
			log.Fatalf("Failed to load vault master key: %v", err)
		}
		// Development convenience: ephemeral key, secrets do not
		// survive a restart.
		masterKey = make([]byte, 32)
		if _, err := rand.Read(masterKey); err != nil {
			log.Fatalf("Failed to generate ephemeral vault key: %v", err)
		}
		log.Println("⚠ VAULT_MASTER_KEY not set, using ephemeral key (development only)")
	}
	credentialVault, err := vault.New(masterKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}
	log.Println("✓ Credential vault initialized")

	// Initialize the token service for sessions and OAuth state
	signingSecret := cfg.Session.SigningSecret
	if signingSecret == "" && cfg.Server.Environment == "development" {
		signingSecret = "dev-only-signing-secret"
		log.Println("⚠ SESSION_SECRET not set, using development default")
	}
	tokenService, err := jwt.NewTokenService(
		[]byte(signingSecret),
		cfg.Session.SessionExpiry,
		cfg.Session.StateExpiry,
		cfg.Session.Issuer,
	)
	if err != nil {
		log.Fatalf("Failed to initialize token service: %v", err)
	}

	// Initialize mailer
	var mailer email.Mailer = email.Unconfigured{}
	if cfg.Email.Enabled {
		resendMailer, err := email.NewResendMailer(&email.Config{
			APIKey:    cfg.Email.APIKey,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
			Timeout:   cfg.Email.Timeout,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize mailer: %v", err)
			log.Println("Email delivery will be unavailable; registrations cannot complete")
		} else {
			mailer = resendMailer
			log.Println("✓ Mailer initialized (Resend)")
		}
	} else {
		log.Println("ℹ Email delivery disabled (set EMAIL_ENABLED=true to enable)")
	}

	// Initialize validator
	validate := validator.New()

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(db)
	integrationRepo := postgres.NewIntegrationRepository(db)
	attemptRepo := postgres.NewLoginAttemptRepository(db)

	// Initialize services
	mfaService := service.NewMFAService(cfg.Session.Issuer)
	loginThrottle := throttle.NewLoginThrottle(redisClient)
	authService := service.NewAuthService(accountRepo, attemptRepo, mfaService, tokenService, mailer, loginThrottle)
	oauthService := service.NewOAuthService(integrationRepo, tokenService, credentialVault, &cfg.OAuth)
	integrationService := service.NewIntegrationService(integrationRepo, credentialVault)

	// Every account must carry an MFA secret; backfill any that do not.
	backfillCtx, backfillCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if n, err := authService.BackfillMFASecrets(backfillCtx); err != nil {
		log.Printf("Warning: MFA secret backfill incomplete: %v", err)
	} else if n > 0 {
		log.Printf("✓ Backfilled MFA secrets for %d accounts", n)
	}
	backfillCancel()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, validate)
	passwordHandler := handler.NewPasswordHandler(authService, validate)
	oauthHandler := handler.NewOAuthHandler(oauthService)
	integrationHandler := handler.NewIntegrationHandler(integrationService, validate)
	healthHandler := handler.NewHealthHandler()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Identity Service v1.0",
		ErrorHandler: customErrorHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	// Setup global middlewares
	app.Use(middleware.RecoveryMiddleware())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CORSMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokenService)

	// Setup routes
	handler.SetupRoutes(
		app,
		authHandler,
		passwordHandler,
		oauthHandler,
		integrationHandler,
		healthHandler,
		authMiddleware,
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("🚀 Server starting on http://localhost%s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		if err := app.Listen(addr); err != nil {
			log.Printf("❌ Server failed to start: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("⏳ Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server stopped")
}

// initDB initializes the PostgreSQL connection with retry logic
func initDB(cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.Database.DSN()

	var db *sqlx.DB
	var err error

	maxRetries := 5
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			break
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Error closing database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// initRedis initializes the Redis client and verifies the connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Printf("Error closing Redis after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// customErrorHandler handles errors escaping the handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	log.Printf("Error handling request [%s %s]: %v", c.Method(), c.Path(), err)

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
