package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/police-terminal/internal/refresh"
)

// ErrInvalidCredentials indicates a wrong badge or passcode.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid badge or passcode"
}

// ErrNotFound indicates an unknown panel, domain or marker.
type ErrNotFound struct {
	What string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.ID)
}

// ErrConflict indicates the request clashes with the panel's wait state.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		creds      *ErrInvalidCredentials
		notFound   *ErrNotFound
		conflict   *ErrConflict
		validation *ErrValidation
	)
	switch {
	case errors.As(err, &creds):
		return http.StatusUnauthorized
	case errors.As(err, &notFound), errors.Is(err, refresh.ErrUnknownMarker):
		return http.StatusNotFound
	case errors.As(err, &conflict), errors.Is(err, refresh.ErrEmptyMarker):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, refresh.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// extractValidationErrors renders validator errors as "field: tag" pairs.
func extractValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
