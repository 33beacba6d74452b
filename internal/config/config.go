package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	LogLevel        string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL        string   `mapstructure:"REDIS_URL"`
	RealtimeChannel string   `mapstructure:"REALTIME_CHANNEL"`
	AuthIssuer      string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey  string   `mapstructure:"AUTH_SIGNING_KEY"`
	DevAuth         bool     `mapstructure:"DEV_AUTH"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`
	MigrationsDir   string   `mapstructure:"MIGRATIONS_DIR"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "REALTIME_CHANNEL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"AUTH_SIGNING_KEY", "DEV_AUTH", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"MIGRATIONS_DIR",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("REALTIME_CHANNEL", "chronicare:alerts")
	v.SetDefault("DEV_AUTH", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")

	// Unmarshal only sees env vars that were bound explicitly.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
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

// Validate checks that the configuration is safe to run. Unless DEV_AUTH is
// set, AUTH_SIGNING_KEY or AUTH_ISSUER must be configured so that both the
// REST middleware and the websocket handshake verify real tokens. DEV_AUTH is
// refused outside development.
func (c *Config) Validate() error {
	if c.DevAuth && !c.IsDev() {
		return fmt.Errorf("DEV_AUTH is only allowed with ENV=development (current ENV=%q)", c.Env)
	}
	if !c.DevAuth && c.AuthSigningKey == "" && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_ISSUER must be set, or DEV_AUTH=true in development")
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RealtimeChannel == "" {
		return fmt.Errorf("REALTIME_CHANNEL must not be empty")
	}
	return nil
}
