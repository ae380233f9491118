package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Gartalgart/cri-novadis/internal/domain/models"
)

// AuthorizationSource is the remote collaborator consulted on every sign-in
// attempt. Errors other than domain ErrNotFound surface as transport failures;
// the core does not retry automatically.
type AuthorizationSource interface {
	// FindByEmail looks up an authorization record by its case-insensitive
	// email. Returns domain ErrNotFound when no record matches.
	FindByEmail(ctx context.Context, email string) (*models.AuthorizedUser, error)
	// UpdateLastLogin patches last_login on the matching record.
	UpdateLastLogin(ctx context.Context, email string, at time.Time) error
}

// AuthorizedUserRepository extends the read-side source with the admin
// operations over authorized_users.
type AuthorizedUserRepository interface {
	AuthorizationSource
	List(ctx context.Context) ([]*models.AuthorizedUser, error)
	Create(ctx context.Context, user *models.AuthorizedUser) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LoginAttemptRepository appends to and reads the append-only login_logs audit
// trail.
type LoginAttemptRepository interface {
	Append(ctx context.Context, attempt *models.LoginAttempt) error
	ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error)
}
