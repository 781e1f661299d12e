package dto

import "github.com/spec-kit/senseirm/internal/domain"

// LoginRequest payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest payload for POST /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	User      domain.RequestIdentity `json:"user"`
	Token     string                 `json:"token"`
	ExpiresIn string                 `json:"expiresIn"`
}

// VerifyResponse confirms a token is still usable.
type VerifyResponse struct {
	User  domain.RequestIdentity `json:"user"`
	Valid bool                   `json:"valid"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
