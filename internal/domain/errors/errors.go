package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Outcomes of the sign-in flow.
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("email is not authorized")
	ErrDisabled     = errors.New("account is disabled")
	ErrLocked       = errors.New("too many failed attempts")
	ErrCodeExpired  = errors.New("verification code expired")
	ErrInvalidCode  = errors.New("verification code does not match")

	// Repository-level errors.
	ErrNotFound    = errors.New("record not found")
	ErrEmailExists = errors.New("email is already authorized")
	ErrTransport   = errors.New("remote authorization source unavailable")
)

// LockedError carries the lockout deadline alongside ErrLocked so the
// presentation layer can display the minutes remaining.
type LockedError struct {
	BlockedUntil time.Time
	MinutesLeft  int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed attempts, retry in %d minutes", e.MinutesLeft)
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// NewLockedError computes the user-facing minutes remaining, rounded up to the
// next whole minute.
func NewLockedError(blockedUntil, now time.Time) *LockedError {
	remaining := blockedUntil.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return &LockedError{BlockedUntil: blockedUntil, MinutesLeft: minutes}
}

// InvalidCodeError carries the remaining attempts alongside ErrInvalidCode.
type InvalidCodeError struct {
	RemainingAttempts int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("verification code does not match, %d attempts remaining", e.RemainingAttempts)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

// IsRecoverable reports whether the user can retry from the current step
// without admin intervention.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrCodeExpired) ||
		errors.Is(err, ErrInvalidCode)
}
