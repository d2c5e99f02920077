// Package config loads service settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Postgres PostgresConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Webhook  WebhookConfig
	Auth     AuthConfig
	HTTP     HTTPConfig
	Ledger   LedgerConfig
}

type PostgresConfig struct {
	URL           string        `env:"DATABASE_URL, required"`
	MaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS, default=10"`
	QueryTimeout  time.Duration `env:"DB_QUERY_TIMEOUT,  default=5s"`
	RunMigrations bool          `env:"DB_RUN_MIGRATIONS, default=true"`
}

// MongoConfig configures the webhook audit trail. An empty URI disables it.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DB, default=buytime"`
}

// RedisConfig configures delivery deduplication. An empty address disables it.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type WebhookConfig struct {
	Secret    string        `env:"CLERK_WEBHOOK_SECRET, required"`
	Tolerance time.Duration `env:"WEBHOOK_TOLERANCE,    default=5m"`
}

// AuthConfig selects how bearer tokens are verified: RS256 against
// PublicKey when set, otherwise HS256 with Secret.
type AuthConfig struct {
	PublicKey string `env:"AUTH_JWT_PUBLIC_KEY"`
	Secret    string `env:"AUTH_JWT_SECRET"`
	Issuer    string `env:"AUTH_ISSUER"`
}

type HTTPConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS,       default=20"`
}

type LedgerConfig struct {
	// RewardMultipliers re-prices focus modes, e.g. "fun:150,hard:30".
	RewardMultipliers map[string]int `env:"REWARD_MULTIPLIERS"`
	AuditWorkers      int            `env:"AUDIT_WORKERS, default=4"`
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks settings that struct tags cannot express.
func (c *Config) Validate() error {
	if c.Auth.PublicKey == "" && c.Auth.Secret == "" {
		return errors.New("one of AUTH_JWT_PUBLIC_KEY or AUTH_JWT_SECRET is required")
	}
	if c.Webhook.Tolerance <= 0 {
		return fmt.Errorf("WEBHOOK_TOLERANCE must be positive, got %s", c.Webhook.Tolerance)
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.HTTP.RateLimitRPS)
	}
	return nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
