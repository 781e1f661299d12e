package dto

import "github.com/spec-kit/senseirm/internal/domain"

// CreateUserRequest payload for admin user creation.
type CreateUserRequest struct {
	Name     string      `json:"name" validate:"required,max=255"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=admin user"`
}

// UpdateUserRequest holds optional admin edits.
type UpdateUserRequest struct {
	Name     *string      `json:"name" validate:"omitempty,min=1,max=255"`
	Email    *string      `json:"email" validate:"omitempty,email"`
	Role     *domain.Role `json:"role" validate:"omitempty,oneof=admin user"`
	IsActive *bool        `json:"isActive"`
}

// UpdateProfileRequest holds optional self-service edits.
type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// UserListResponse is one page of users.
type UserListResponse struct {
	Users       []domain.RequestIdentity `json:"users"`
	TotalPages  int                      `json:"totalPages"`
	CurrentPage int                      `json:"currentPage"`
	TotalUsers  int64                    `json:"totalUsers"`
}
