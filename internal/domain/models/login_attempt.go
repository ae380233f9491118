package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt is an append-only audit entry in the remote login_logs table.
// One entry is written per sign-in checkpoint: email authorization, code
// verification, or a failure of either.
type LoginAttempt struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Succeeded bool      `json:"success" db:"success"`
	Context   string    `json:"context" db:"context"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
