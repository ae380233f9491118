package repository

import "context"

// Well-known keys in the device-local store.
const (
	KeyUserSession      = "userSession"
	KeyAuthBlockedUntil = "authBlockedUntil"
	KeyAuthAttemptCount = "authAttemptCount"
)

// KeyValueStore is the persisted device-local store backing the session and
// lockout state. Get returns domain ErrNotFound for a missing key; Delete of a
// missing key is not an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
