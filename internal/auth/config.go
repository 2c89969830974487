package auth

import (
	"errors"
	"os"
	"strings"
	"time"
)

// DevFallbackSecret signs tokens when APP_ENV=development and no secret is
// configured. It is never accepted in any other environment.
const DevFallbackSecret = "dev-only-insecure-signing-secret"

const DefaultTokenTTL = time.Hour

var ErrMissingSecret = errors.New("JWT_SECRET_KEY must be set outside development")

type Config struct {
	Secret       string
	TTL          time.Duration
	Env          string
	CookieSecure bool
}

// ConfigFromEnv reads JWT_SECRET_KEY, JWT_TTL, APP_ENV and COOKIE_SECURE.
func ConfigFromEnv() Config {
	ttl, err := time.ParseDuration(os.Getenv("JWT_TTL"))
	if err != nil || ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		env = "production"
	}
	return Config{
		Secret:       os.Getenv("JWT_SECRET_KEY"),
		TTL:          ttl,
		Env:          env,
		CookieSecure: os.Getenv("COOKIE_SECURE") == "1" || strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true"),
	}
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// Validate rejects a missing secret outside development. In development the
// fallback secret is filled in and usedFallback is true so the caller can
// warn about it.
func (c *Config) Validate() (usedFallback bool, err error) {
	if c.TTL <= 0 {
		c.TTL = DefaultTokenTTL
	}
	if c.Secret != "" {
		return false, nil
	}
	if !c.IsDevelopment() {
		return false, ErrMissingSecret
	}
	c.Secret = DevFallbackSecret
	return true, nil
}
