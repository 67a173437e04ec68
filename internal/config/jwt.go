package config

import (
	"fmt"
	"os"
	"time"
)

// JWTConfig holds configuration for officer session tokens.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig creates a new JWT configuration from environment variables.
// It reads JWT_SECRET (required) and JWT_EXPIRATION_HOURS (default: 12, one shift).
func NewJWTConfig() (*JWTConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}

	hours, err := envInt("JWT_EXPIRATION_HOURS", 12)
	if err != nil {
		return nil, err
	}

	config := &JWTConfig{
		Secret:          secret,
		ExpirationHours: hours,
	}
	if err := config.normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// Expiration returns the token lifetime.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.ExpirationHours < 1 || c.ExpirationHours > 24*7 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be between 1 and 168, got: %d", c.ExpirationHours)
	}
	return nil
}
