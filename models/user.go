package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole controls access to admin endpoints and prompt overrides
type UserRole string

const (
	RoleUser      UserRole = "user"
	RolePowerUser UserRole = "power_user"
	RoleAdmin     UserRole = "admin"
)

// User represents a user entity
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanOverridePrompts reports whether the user may install custom system prompts
func (u *User) CanOverridePrompts() bool {
	return u.Role == RolePowerUser || u.Role == RoleAdmin
}
