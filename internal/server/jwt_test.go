package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/police-terminal/internal/config"
)

const testSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func setupTestJWTService(_ *testing.T, expirationHours int) *JWTService {
	cfg := &config.JWTConfig{
		Secret:          testSecret,
		ExpirationHours: expirationHours,
	}
	return NewJWTService(cfg)
}

func TestJWTService_GenerateToken(t *testing.T) {
	service := setupTestJWTService(t, 12)

	token, expiresAt, err := service.GenerateToken("0451")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parts := strings.Split(token, ".")
	assert.Equal(t, 3, len(parts), "JWT should have 3 parts separated by dots")
	assert.WithinDuration(t, time.Now().Add(12*time.Hour), expiresAt, time.Minute)
}

func TestJWTService_ValidateToken_RoundTrip(t *testing.T) {
	service := setupTestJWTService(t, 12)

	token, _, err := service.GenerateToken("0451")
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0451", claims.Badge)
	assert.Equal(t, "0451", claims.Subject)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_TokensAreUnique(t *testing.T) {
	service := setupTestJWTService(t, 12)

	t1, _, err := service.GenerateToken("0451")
	require.NoError(t, err)
	t2, _, err := service.GenerateToken("0451")
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

func TestJWTService_ValidateToken_Expired(t *testing.T) {
	service := setupTestJWTService(t, 1)
	issued := time.Now().Add(-2 * time.Hour)
	service.now = func() time.Time { return issued }

	token, _, err := service.GenerateToken("0451")
	require.NoError(t, err)

	service.now = time.Now
	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestJWTService_ValidateToken_WrongSecret(t *testing.T) {
	service := setupTestJWTService(t, 12)
	other := NewJWTService(&config.JWTConfig{Secret: "another-secret-of-sufficient-length-here", ExpirationHours: 12})

	token, _, err := other.GenerateToken("0451")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token signature")
}

func TestJWTService_ValidateToken_WrongAlgorithm(t *testing.T) {
	service := setupTestJWTService(t, 12)

	claims := &Claims{
		Badge: "0451",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_ValidateToken_WrongIssuer(t *testing.T) {
	service := setupTestJWTService(t, 12)

	claims := &Claims{
		Badge: "0451",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_ValidateToken_EmptyBadge(t *testing.T) {
	service := setupTestJWTService(t, 12)

	token, _, err := service.GenerateToken("")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid")
}

func TestJWTService_ValidateToken_Malformed(t *testing.T) {
	service := setupTestJWTService(t, 12)

	_, err := service.ValidateToken("")
	assert.Error(t, err)

	_, err = service.ValidateToken("not.a.jwt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed token")
}

func TestAsTokenValidator(t *testing.T) {
	service := setupTestJWTService(t, 12)
	token, _, err := service.GenerateToken("0451")
	require.NoError(t, err)

	getter, err := service.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "0451", getter.GetBadge())
}
