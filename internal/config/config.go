package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Vault    VaultConfig
	Email    EmailConfig
	OAuth    OAuthConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	SigningSecret string
	SessionExpiry time.Duration
	StateExpiry   time.Duration
	Issuer        string
}

type VaultConfig struct {
	MasterKeyHex string
}

type EmailConfig struct {
	Enabled   bool
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// OAuthProviderConfig carries the per-provider client credentials. The
// endpoint URLs and scopes are static and live with the connector.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

type OAuthConfig struct {
	CallbackBaseURL string
	SuccessURL      string
	ErrorURL        string
	Providers       map[string]OAuthProviderConfig
}

func Load() (*Config, error) {
	// .env is optional outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "identity"),
			Password: getEnv("DB_PASSWORD", "identity"),
			DBName:   getEnv("DB_NAME", "identitydb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Session: SessionConfig{
			SigningSecret: getEnv("SESSION_SECRET", ""),
			SessionExpiry: getDurationEnv("SESSION_EXPIRY", 24*time.Hour),
			StateExpiry:   getDurationEnv("OAUTH_STATE_EXPIRY", 10*time.Minute),
			Issuer:        getEnv("SESSION_ISSUER", "identity-service"),
		},
		Vault: VaultConfig{
			MasterKeyHex: getEnv("VAULT_MASTER_KEY", ""),
		},
		Email: EmailConfig{
			Enabled:   getBoolEnv("EMAIL_ENABLED", false),
			APIKey:    getEnv("RESEND_API_KEY", ""),
			FromEmail: getEnv("EMAIL_FROM", ""),
			FromName:  getEnv("EMAIL_FROM_NAME", "DevOps Console"),
			Timeout:   getDurationEnv("EMAIL_TIMEOUT", 10*time.Second),
		},
		OAuth: OAuthConfig{
			CallbackBaseURL: getEnv("OAUTH_CALLBACK_BASE_URL", "http://localhost:8080"),
			SuccessURL:      getEnv("OAUTH_SUCCESS_URL", "http://localhost:3000/integrations?status=connected"),
			ErrorURL:        getEnv("OAUTH_ERROR_URL", "http://localhost:3000/integrations?status=error"),
			Providers: map[string]OAuthProviderConfig{
				"github": {
					ClientID:     getEnv("GITHUB_CLIENT_ID", ""),
					ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
				},
				"gitlab": {
					ClientID:     getEnv("GITLAB_CLIENT_ID", ""),
					ClientSecret: getEnv("GITLAB_CLIENT_SECRET", ""),
				},
				"slack": {
					ClientID:     getEnv("SLACK_CLIENT_ID", ""),
					ClientSecret: getEnv("SLACK_CLIENT_SECRET", ""),
				},
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces the hard startup requirements. Outside development
// the service refuses to boot without a signing secret and a usable
// vault master key.
func (c *Config) validate() error {
	if c.Server.Environment == "development" {
		return nil
	}

	if c.Session.SigningSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required in %s", c.Server.Environment)
	}

	if c.Vault.MasterKeyHex == "" {
		return fmt.Errorf("VAULT_MASTER_KEY is required in %s", c.Server.Environment)
	}

	if _, err := c.MasterKey(); err != nil {
		return err
	}

	return nil
}

// MasterKey decodes the vault master key. It must be 64 hex characters
// (32 bytes).
func (c *Config) MasterKey() ([]byte, error) {
	key, err := hex.DecodeString(c.Vault.MasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("VAULT_MASTER_KEY must be hex-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("VAULT_MASTER_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
