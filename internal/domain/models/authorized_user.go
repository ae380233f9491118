package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthorizedUser is a row of the remote authorized_users table. The sign-in
// core only reads it and patches LastLoginAt; creation and editing belong to
// the admin surface.
type AuthorizedUser struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Email       string     `json:"email" db:"email"`
	FullName    string     `json:"full_name" db:"full_name"`
	Department  string     `json:"department" db:"department"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	LastLoginAt *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
