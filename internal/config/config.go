package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	PublicBaseURL         string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	AdminSecretKey        string `env:"ADMIN_SECRET_KEY"`
	ScrapeIntervalSeconds int    `env:"SCRAPE_INTERVAL_SECONDS" envDefault:"10"`
	TokenTimeOffsetHours  int    `env:"TOKEN_TIME_OFFSET_HOURS" envDefault:"8"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) ScrapeInterval() time.Duration {
	return time.Duration(c.ScrapeIntervalSeconds) * time.Second
}

// TokenTimeZone is the fixed zone used for the minute-stamp embedded in
// short-link tokens. The SIM hardware sits in one timezone regardless of
// where the server runs.
func (c *Config) TokenTimeZone() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.TokenTimeOffsetHours), c.TokenTimeOffsetHours*3600)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.AdminSecretKey == "" {
		log.Warn().Msg("ADMIN_SECRET_KEY is empty: admin API disabled")
		return nil
	}

	if isProduction && !strings.HasPrefix(c.AdminSecretKey, "$2") {
		if len(c.AdminSecretKey) < 16 {
			return fmt.Errorf("ADMIN_SECRET_KEY must be at least 16 characters in production (generate with: openssl rand -base64 32)")
		}
		for _, weak := range knownWeakSecrets {
			if c.AdminSecretKey == weak {
				return fmt.Errorf("ADMIN_SECRET_KEY is a known weak default; set a strong secret in production")
			}
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
