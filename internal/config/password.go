package config

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasscodeTooShort is returned when hashing a passcode below MinPasscodeLength.
var ErrPasscodeTooShort = errors.New("passcode too short")

// MinPasscodeLength is the shortest passcode hash-passcode accepts.
const MinPasscodeLength = 4

// PasscodeConfig holds configuration for officer passcode hashing.
type PasscodeConfig struct {
	BcryptCost int
	Pepper     string // optional global secret appended before hashing
}

// NewPasscodeConfig creates a new passcode configuration from environment variables.
// It reads BCRYPT_COST (default: 12) and optionally PASSWORD_PEPPER.
func NewPasscodeConfig() (*PasscodeConfig, error) {
	cost, err := envInt("BCRYPT_COST", 12)
	if err != nil {
		return nil, err
	}

	config := &PasscodeConfig{
		BcryptCost: cost,
		Pepper:     os.Getenv("PASSWORD_PEPPER"),
	}
	if err := config.normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *PasscodeConfig) normalize() error {
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", c.BcryptCost)
	}
	return nil
}

func (c *PasscodeConfig) peppered(passcode string) []byte {
	return []byte(passcode + c.Pepper)
}

// HashPasscode hashes a passcode using bcrypt (with optional pepper).
func (c *PasscodeConfig) HashPasscode(passcode string) (string, error) {
	if len(passcode) < MinPasscodeLength {
		return "", fmt.Errorf("%w: need at least %d characters", ErrPasscodeTooShort, MinPasscodeLength)
	}
	hash, err := bcrypt.GenerateFromPassword(c.peppered(passcode), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash passcode: %w", err)
	}
	return string(hash), nil
}

// VerifyPasscode reports whether passcode matches a stored hash. An empty
// hash never matches.
func (c *PasscodeConfig) VerifyPasscode(passcode, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), c.peppered(passcode)) == nil
}
