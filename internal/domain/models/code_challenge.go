package models

import "time"

// CodeVerification is the outcome of checking a submitted one-time code.
type CodeVerification int

const (
	CodeOK CodeVerification = iota
	CodeMismatch
	CodeExpired
)

// CodeChallenge is a one-time 6-digit code pending verification. It lives only
// in memory for the duration of a sign-in flow and is never persisted.
type CodeChallenge struct {
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verify checks a submitted code at the given instant. Expiry wins over
// correctness: past ExpiresAt the result is CodeExpired even for a matching
// code.
func (c *CodeChallenge) Verify(submitted string, now time.Time) CodeVerification {
	if now.After(c.ExpiresAt) {
		return CodeExpired
	}
	if submitted != c.Code {
		return CodeMismatch
	}
	return CodeOK
}
