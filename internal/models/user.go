package models

import "strings"

// Role is the access level the backend grants a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	// RoleUnknown marks an identity the console could not resolve.
	RoleUnknown Role = "unknown"
)

// User mirrors the backend user resource.
type User struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}

// IsAdmin reports whether the user may open the admin tab.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Known is false for the placeholder identity used when resolution failed.
func (u *User) Known() bool {
	return u != nil && u.Role != RoleUnknown
}

// UnknownIdentity is the degraded identity held by a session whose user could
// not be resolved. It is authenticated but never admin.
func UnknownIdentity(email string) *User {
	return &User{Email: strings.ToLower(strings.TrimSpace(email)), Role: RoleUnknown, IsActive: true}
}

// FindUserByEmail returns the user whose email matches case-insensitively.
func FindUserByEmail(users []User, email string) *User {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	for i := range users {
		if strings.ToLower(users[i].Email) == email {
			found := users[i]
			return &found
		}
	}
	return nil
}
