package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`

	EscrowStartBalance float64 `mapstructure:"ESCROW_START_BALANCE"`
	EscrowLockAmount   float64 `mapstructure:"ESCROW_LOCK_AMOUNT"`
	EscrowLatencyMs    int     `mapstructure:"ESCROW_LATENCY_MS"`
	EscrowFailureRate  float64 `mapstructure:"ESCROW_FAILURE_RATE"`
	EscrowOpTimeoutMs  int     `mapstructure:"ESCROW_OP_TIMEOUT_MS"`

	NotifyWebhookURL string `mapstructure:"NOTIFY_WEBHOOK_URL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("ESCROW_START_BALANCE", 1000)
	v.SetDefault("ESCROW_LOCK_AMOUNT", 200)
	v.SetDefault("ESCROW_LATENCY_MS", 0)
	v.SetDefault("ESCROW_FAILURE_RATE", 0)
	v.SetDefault("ESCROW_OP_TIMEOUT_MS", 5000)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("ESCROW_START_BALANCE")
	v.BindEnv("ESCROW_LOCK_AMOUNT")
	v.BindEnv("ESCROW_LATENCY_MS")
	v.BindEnv("ESCROW_FAILURE_RATE")
	v.BindEnv("ESCROW_OP_TIMEOUT_MS")
	v.BindEnv("NOTIFY_WEBHOOK_URL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active; all requests get admin access.")
		log.Println("WARNING: Set ENV=production and AUTH_SIGNING_KEY for production.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Production requires a
// JWT signing key so real authentication is enforced, and the simulated escrow
// failure rate must stay a probability.
func (c *Config) Validate() error {
	if c.IsProduction() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
	}
	if c.EscrowFailureRate < 0 || c.EscrowFailureRate >= 1 {
		return fmt.Errorf("ESCROW_FAILURE_RATE must be in [0, 1), got %g", c.EscrowFailureRate)
	}
	if c.EscrowStartBalance < 0 {
		return fmt.Errorf("ESCROW_START_BALANCE must not be negative")
	}
	if c.EscrowLockAmount <= 0 {
		return fmt.Errorf("ESCROW_LOCK_AMOUNT must be positive")
	}
	return nil
}
