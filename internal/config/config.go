// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles;
// a local .env file, when present, is loaded first and never overrides real variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Identity verification modes.
const (
	AuthModeLocal  = "local"
	AuthModeRemote = "remote"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8001"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	// Cache (Redis). Optional: identity caching and update de-duplication are
	// disabled when empty.
	RedisURL string `env:"REDIS_URL"`

	// PublicBaseURL is the dashboard origin that serves /link?code=...
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	// WebhookBaseURL overrides the API base derived from request headers when
	// registering chat platform webhooks.
	WebhookBaseURL string `env:"WEBHOOK_BASE_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. WriteTimeout must exceed AgentTimeout so a slow agent
	// still gets its fallback reply acknowledged.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://app.laissez.xyz"), "*" for any.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Identity provider
	AuthMode             string `env:"AUTH_MODE" envDefault:"local"`
	PrivyAppID           string `env:"PRIVY_APP_ID,required"`
	PrivyAppSecret       string `env:"PRIVY_APP_SECRET"`
	PrivyVerificationKey string `env:"PRIVY_VERIFICATION_KEY"`
	PrivyAPIURL          string `env:"PRIVY_API_URL" envDefault:"https://auth.privy.io"`
	PrivyIssuer          string `env:"PRIVY_ISSUER" envDefault:"privy.io"`

	// Chat platform
	TelegramAPIURL   string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	WebhookSecretKey string `env:"WEBHOOK_SECRET_KEY"`

	// Relay
	AgentTimeout time.Duration `env:"AGENT_TIMEOUT" envDefault:"30s"`
	// AgentAllowPrivateURLs permits loopback/private agent URLs (local agents in development).
	AgentAllowPrivateURLs bool          `env:"AGENT_ALLOW_PRIVATE_URLS" envDefault:"false"`
	LinkCodeTTL           time.Duration `env:"LINK_CODE_TTL" envDefault:"24h"`
	// LinkSweepInterval controls purging of expired pending links; 0 disables it.
	LinkSweepInterval time.Duration `env:"LINK_SWEEP_INTERVAL" envDefault:"1h"`

	// Fallback model
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Telemetry (disabled when the endpoint is empty)
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders     string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"laissez-api"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeLocal:
		if c.PrivyVerificationKey == "" && c.PrivyAppSecret == "" {
			return errors.New("AUTH_MODE=local requires PRIVY_VERIFICATION_KEY or PRIVY_APP_SECRET")
		}
	case AuthModeRemote:
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.AgentTimeout <= 0 {
		return errors.New("AGENT_TIMEOUT must be positive")
	}
	if c.LinkCodeTTL <= 0 {
		return errors.New("LINK_CODE_TTL must be positive")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// DatabaseConfig is the subset of configuration schema tooling needs.
type DatabaseConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
}

// LoadDatabase reads only the database settings, so migrations can run
// without identity provider credentials.
func LoadDatabase() (*DatabaseConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &DatabaseConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}
