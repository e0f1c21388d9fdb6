package dto

import "github.com/noah-isme/ecotrack-console/internal/models"

// LoginRequest holds credentials for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the self-service account creation payload.
type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateUserRequest is the admin create form. Role defaults to user and
// IsActive to true when omitted.
type CreateUserRequest struct {
	FullName string      `json:"full_name" validate:"required"`
	Email    string      `json:"email" validate:"required"`
	Password string      `json:"password" validate:"required"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=user admin"`
	IsActive *bool       `json:"is_active"`
}

// UpdateUserRequest carries the fields the admin edit form may change. Nil
// fields are left untouched by the backend.
type UpdateUserRequest struct {
	FullName *string      `json:"full_name,omitempty" validate:"omitempty,min=1"`
	Email    *string      `json:"email,omitempty" validate:"omitempty,min=1"`
	Role     *models.Role `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	IsActive *bool        `json:"is_active,omitempty"`
}

// Empty reports whether the update changes nothing.
func (r UpdateUserRequest) Empty() bool {
	return r.FullName == nil && r.Email == nil && r.Role == nil && r.IsActive == nil
}
