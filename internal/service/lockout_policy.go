package service

import (
	"time"

	"github.com/Gartalgart/cri-novadis/internal/domain/models"
)

// LockoutPolicy decides whether a new sign-in attempt is permitted and
// computes the next lockout state after a failed or successful attempt. It is
// pure state transition; persisting the result is the caller's responsibility.
type LockoutPolicy struct {
	maxAttempts   int
	blockDuration time.Duration
}

// NewLockoutPolicy creates a LockoutPolicy with the given threshold and block
// duration.
func NewLockoutPolicy(maxAttempts int, blockDuration time.Duration) *LockoutPolicy {
	return &LockoutPolicy{maxAttempts: maxAttempts, blockDuration: blockDuration}
}

// CanAttempt reports whether an attempt is permitted at the given instant and
// returns the state to carry forward. A block whose deadline has passed is
// treated as lapsed: the returned state is reset to zero.
func (p *LockoutPolicy) CanAttempt(state models.LockoutState, now time.Time) (bool, models.LockoutState) {
	if state.BlockedUntil == nil {
		return true, state
	}
	if now.Before(*state.BlockedUntil) {
		return false, state
	}
	return true, models.LockoutState{}
}

// RecordFailure increments the attempt count; reaching the threshold sets the
// block deadline. The count stays at the threshold until the block lapses.
func (p *LockoutPolicy) RecordFailure(state models.LockoutState, now time.Time) models.LockoutState {
	next := models.LockoutState{AttemptCount: state.AttemptCount + 1}
	if next.AttemptCount >= p.maxAttempts {
		next.AttemptCount = p.maxAttempts
		blockedUntil := now.Add(p.blockDuration)
		next.BlockedUntil = &blockedUntil
	}
	return next
}

// RecordSuccess resets the lockout state regardless of prior attempts.
func (p *LockoutPolicy) RecordSuccess() models.LockoutState {
	return models.LockoutState{}
}

// RemainingAttempts returns how many failures are left before a block.
func (p *LockoutPolicy) RemainingAttempts(state models.LockoutState) int {
	remaining := p.maxAttempts - state.AttemptCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
