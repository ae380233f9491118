package models

import "time"

// LockoutState tracks consecutive failed code verifications for the device.
// BlockedUntil is non-nil only once AttemptCount has reached the policy
// threshold; the state survives process restarts via the local store.
type LockoutState struct {
	AttemptCount int        `json:"attempt_count"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// Blocked reports whether the state denies attempts at the given instant.
func (s LockoutState) Blocked(now time.Time) bool {
	return s.BlockedUntil != nil && now.Before(*s.BlockedUntil)
}
