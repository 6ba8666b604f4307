package dto

import "time"

// LoginRequest carries local credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// RegisterRequest creates a local account.
type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=64"`
	Name     string  `json:"name" validate:"required,max=100"`
	Password string  `json:"password" validate:"required,min=6,max=72"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
}

// GoogleLoginRequest exchanges a Google ID token for a session.
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// GuestLoginRequest creates an anonymous guest account.
type GuestLoginRequest struct {
	Name string `json:"name" validate:"max=100"`
}

// ProfileUpdateRequest is the self-service profile update.
type ProfileUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email  *string `json:"email" validate:"omitempty,email,max=255"`
	Avatar *string `json:"avatar" validate:"omitempty,max=2048"`
}

// AuthResponse is returned by every successful sign-in.
type AuthResponse struct {
	Token       string          `json:"token"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	User        AccountResponse `json:"user"`
	Permissions []string        `json:"permissions"`
}
