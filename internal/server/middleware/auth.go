// Package middleware provides HTTP middleware for officer authentication.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// badgeKey is the context key for storing the authenticated badge.
const badgeKey ContextKey = "badge"

// TokenValidator is an interface for validating JWT tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (BadgeGetter, error)
}

// BadgeGetter is an interface for extracting the officer badge from token claims.
type BadgeGetter interface {
	GetBadge() string
}

// AuthMiddleware creates middleware that validates JWT tokens and adds the
// badge to the request context. The token is read from the Authorization
// header, or from the token query parameter for EventSource clients, which
// cannot set headers.
func AuthMiddleware(jwtService TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), badgeKey, claims.GetBadge())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		return token, token != ""
	}

	// Handle case-insensitive "Bearer" prefix
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetBadge extracts the authenticated badge from the request context.
func GetBadge(r *http.Request) (string, error) {
	badge, ok := r.Context().Value(badgeKey).(string)
	if !ok || badge == "" {
		return "", fmt.Errorf("badge not found in request context")
	}
	return badge, nil
}

// WithBadge returns a context carrying badge, as the middleware would.
func WithBadge(ctx context.Context, badge string) context.Context {
	return context.WithValue(ctx, badgeKey, badge)
}
