package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/Gartalgart/cri-novadis/internal/domain/errors"
	"github.com/Gartalgart/cri-novadis/internal/domain/models"
	"github.com/Gartalgart/cri-novadis/internal/domain/repository"
	"github.com/Gartalgart/cri-novadis/internal/utils/clock"
)

// AdminService manages the authorized_users allowlist and reads the audit
// trail. It is the administrative collaborator of the sign-in core: records
// created here are what SubmitEmail later authorizes against.
type AdminService struct {
	users    repository.AuthorizedUserRepository
	attempts repository.LoginAttemptRepository
	clk      clock.Clock
	logger   *zap.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(users repository.AuthorizedUserRepository, attempts repository.LoginAttemptRepository, clk clock.Clock, logger *zap.Logger) *AdminService {
	return &AdminService{users: users, attempts: attempts, clk: clk, logger: logger}
}

// ListUsers returns all authorized users, newest first.
func (s *AdminService) ListUsers(ctx context.Context) ([]*models.AuthorizedUser, error) {
	return s.users.List(ctx)
}

// AddUser authorizes a new email. Email and full name are required; the email
// is normalized to lower case and must not already be authorized.
func (s *AdminService) AddUser(ctx context.Context, email, fullName, department string) (*models.AuthorizedUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)
	if email == "" || fullName == "" {
		return nil, fmt.Errorf("%w: email and full name are required", domainErrors.ErrInvalidInput)
	}

	user := &models.AuthorizedUser{
		ID:         uuid.New(),
		Email:      email,
		FullName:   fullName,
		Department: strings.TrimSpace(department),
		IsActive:   true,
		CreatedAt:  s.clk.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("Authorized user added", zap.String("email", email))
	return user, nil
}

// SetUserActive toggles whether an authorized user may sign in.
func (s *AdminService) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.logger.Info("Authorized user status changed",
		zap.String("id", id.String()), zap.Bool("active", active))
	return nil
}

// RemoveUser permanently removes an authorized user.
func (s *AdminService) RemoveUser(ctx context.Context, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Authorized user removed", zap.String("id", id.String()))
	return nil
}

// RecentAttempts returns the most recent audit entries, newest first.
func (s *AdminService) RecentAttempts(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.attempts.ListRecent(ctx, limit)
}
