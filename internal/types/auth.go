package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// LoginRequest is an officer login.
type LoginRequest struct {
	Badge    string `json:"badge" validate:"required,max=32"`
	Passcode string `json:"passcode" validate:"required,max=128"`
}

// LoginResponse carries the session token issued on login.
type LoginResponse struct {
	Badge     string    `json:"badge"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChatEvent is one message-received event from the chat host.
type ChatEvent struct {
	Name   string `json:"name,omitempty"`
	IsUser bool   `json:"is_user"`
	Text   string `json:"mes" validate:"required"`
}

// PreferencesUpdate changes terminal preferences. Fields left empty are untouched.
type PreferencesUpdate struct {
	WallpaperIndex *int   `json:"wallpaper_index,omitempty" validate:"omitempty,min=0"`
	AddWallpaper   string `json:"add_wallpaper,omitempty" validate:"omitempty,url"`
	NextWallpaper  bool   `json:"next_wallpaper,omitempty"`
}

// Validate validates the LoginRequest using the validator.
func (r *LoginRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the ChatEvent using the validator.
func (e *ChatEvent) Validate() error {
	return validate.Struct(e)
}

// Validate validates the PreferencesUpdate using the validator.
func (u *PreferencesUpdate) Validate() error {
	return validate.Struct(u)
}
