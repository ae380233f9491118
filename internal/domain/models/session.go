package models

import "time"

// Session is the locally persisted proof of a prior successful sign-in. It is
// stored signed; a loaded session is never trusted without revalidating its
// time-to-live.
type Session struct {
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}

// IsValid reports whether the session is still within its time-to-live at the
// given instant.
func (s *Session) IsValid(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.IssuedAt) < ttl
}
