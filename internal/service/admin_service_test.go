package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	domainErrors "github.com/Gartalgart/cri-novadis/internal/domain/errors"
	"github.com/Gartalgart/cri-novadis/internal/domain/models"
	"github.com/Gartalgart/cri-novadis/internal/utils/clock"
)

type mockAuthorizedUserRepository struct {
	mock.Mock
}

func (m *mockAuthorizedUserRepository) FindByEmail(ctx context.Context, email string) (*models.AuthorizedUser, error) {
	args := m.Called(ctx, email)
	if user := args.Get(0); user != nil {
		return user.(*models.AuthorizedUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthorizedUserRepository) UpdateLastLogin(ctx context.Context, email string, at time.Time) error {
	return m.Called(ctx, email, at).Error(0)
}

func (m *mockAuthorizedUserRepository) List(ctx context.Context) ([]*models.AuthorizedUser, error) {
	args := m.Called(ctx)
	if users := args.Get(0); users != nil {
		return users.([]*models.AuthorizedUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthorizedUserRepository) Create(ctx context.Context, user *models.AuthorizedUser) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockAuthorizedUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *mockAuthorizedUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type AdminServiceTestSuite struct {
	suite.Suite

	users    *mockAuthorizedUserRepository
	attempts *mockLoginAttemptRepository
	clk      *clock.Fake
	admin    *AdminService
}

func (s *AdminServiceTestSuite) SetupTest() {
	s.users = new(mockAuthorizedUserRepository)
	s.attempts = new(mockLoginAttemptRepository)
	s.clk = clock.NewFake(testStart)
	s.admin = NewAdminService(s.users, s.attempts, s.clk, zap.NewNop())
}

func TestAdminServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceTestSuite))
}

func (s *AdminServiceTestSuite) TestAddUser() {
	s.users.On("Create", mock.Anything, mock.MatchedBy(func(u *models.AuthorizedUser) bool {
		return u.Email == "new@x.com" && u.FullName == "New Tech" &&
			u.Department == "Maintenance" && u.IsActive && u.ID != uuid.Nil &&
			u.CreatedAt.Equal(testStart)
	})).Return(nil).Once()

	user, err := s.admin.AddUser(context.Background(), " New@X.com ", " New Tech ", " Maintenance ")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "new@x.com", user.Email)
	assert.True(s.T(), user.IsActive)
	s.users.AssertExpectations(s.T())
}

func (s *AdminServiceTestSuite) TestAddUser_MissingFields() {
	_, err := s.admin.AddUser(context.Background(), "", "Someone", "")
	assert.ErrorIs(s.T(), err, domainErrors.ErrInvalidInput)

	_, err = s.admin.AddUser(context.Background(), "a@x.com", "   ", "")
	assert.ErrorIs(s.T(), err, domainErrors.ErrInvalidInput)

	s.users.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *AdminServiceTestSuite) TestAddUser_DuplicateEmail() {
	s.users.On("Create", mock.Anything, mock.Anything).Return(domainErrors.ErrEmailExists).Once()

	_, err := s.admin.AddUser(context.Background(), "dup@x.com", "Dup", "")
	assert.ErrorIs(s.T(), err, domainErrors.ErrEmailExists)
}

func (s *AdminServiceTestSuite) TestSetUserActive() {
	id := uuid.New()
	s.users.On("SetActive", mock.Anything, id, false).Return(nil).Once()

	require.NoError(s.T(), s.admin.SetUserActive(context.Background(), id, false))
	s.users.AssertExpectations(s.T())
}

func (s *AdminServiceTestSuite) TestRemoveUser_NotFound() {
	id := uuid.New()
	s.users.On("Delete", mock.Anything, id).Return(domainErrors.ErrNotFound).Once()

	err := s.admin.RemoveUser(context.Background(), id)
	assert.ErrorIs(s.T(), err, domainErrors.ErrNotFound)
}

func (s *AdminServiceTestSuite) TestRecentAttempts_DefaultLimit() {
	entries := []*models.LoginAttempt{{Email: "a@x.com", Succeeded: true}}
	s.attempts.On("ListRecent", mock.Anything, 50).Return(entries, nil).Once()

	got, err := s.admin.RecentAttempts(context.Background(), 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), entries, got)
}

func (s *AdminServiceTestSuite) TestRecentAttempts_ExplicitLimit() {
	s.attempts.On("ListRecent", mock.Anything, 10).Return([]*models.LoginAttempt{}, nil).Once()

	_, err := s.admin.RecentAttempts(context.Background(), 10)
	require.NoError(s.T(), err)
	s.attempts.AssertExpectations(s.T())
}
