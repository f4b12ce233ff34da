package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	AuthJWTSecret     string        `mapstructure:"AUTH_JWT_SECRET"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	AssetUploadURL    string        `mapstructure:"ASSET_UPLOAD_URL"`
	AssetUploadPreset string        `mapstructure:"ASSET_UPLOAD_PRESET"`
	EditSessionTTL    time.Duration `mapstructure:"EDIT_SESSION_TTL"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL",
	"AUTH_JWT_SECRET", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"CORS_ORIGINS",
	"ASSET_UPLOAD_URL", "ASSET_UPLOAD_PRESET",
	"EDIT_SESSION_TTL", "REQUEST_TIMEOUT",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUTH_AUDIENCE", "authenticated")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("EDIT_SESSION_TTL", "30m")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	// Bind explicitly so Unmarshal sees variables that have no default.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// The .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside
// development every request must carry a token signed with AUTH_JWT_SECRET.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET must be set when ENV=%q; refusing to start without authentication", c.Env)
	}
	if c.AuthJWTSecret != "" && len(c.AuthJWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 bytes, got %d", len(c.AuthJWTSecret))
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.EditSessionTTL <= 0 {
		return fmt.Errorf("EDIT_SESSION_TTL must be positive, got %s", c.EditSessionTTL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.IsProduction() && c.AssetUploadURL == "" {
		return fmt.Errorf("ASSET_UPLOAD_URL is required in production; attachments would only be kept in memory")
	}
	return nil
}
