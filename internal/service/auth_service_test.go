package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	domainErrors "github.com/Gartalgart/cri-novadis/internal/domain/errors"
	"github.com/Gartalgart/cri-novadis/internal/domain/models"
	"github.com/Gartalgart/cri-novadis/internal/domain/repository"
	"github.com/Gartalgart/cri-novadis/internal/infrastructure/localstore"
	"github.com/Gartalgart/cri-novadis/internal/utils/clock"
)

// --- Mocks ---

type mockAuthorizationSource struct {
	mock.Mock
}

func (m *mockAuthorizationSource) FindByEmail(ctx context.Context, email string) (*models.AuthorizedUser, error) {
	args := m.Called(ctx, email)
	if user := args.Get(0); user != nil {
		return user.(*models.AuthorizedUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthorizationSource) UpdateLastLogin(ctx context.Context, email string, at time.Time) error {
	return m.Called(ctx, email, at).Error(0)
}

type mockLoginAttemptRepository struct {
	mock.Mock
}

func (m *mockLoginAttemptRepository) Append(ctx context.Context, attempt *models.LoginAttempt) error {
	return m.Called(ctx, attempt).Error(0)
}

func (m *mockLoginAttemptRepository) ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	args := m.Called(ctx, limit)
	if attempts := args.Get(0); attempts != nil {
		return attempts.([]*models.LoginAttempt), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Suite ---

type AuthServiceTestSuite struct {
	suite.Suite

	authSource *mockAuthorizationSource
	attempts   *mockLoginAttemptRepository
	store      *localstore.MemoryStore
	clk        *clock.Fake
	sessions   *SessionService

	auth *AuthService

	issuedCodes   []string
	authenticated []string
}

const (
	testMaxAttempts   = 3
	testBlockDuration = 15 * time.Minute
	testCodeTTL       = 10 * time.Minute
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func (s *AuthServiceTestSuite) SetupTest() {
	s.authSource = new(mockAuthorizationSource)
	s.attempts = new(mockLoginAttemptRepository)
	s.store = localstore.NewMemoryStore()
	s.clk = clock.NewFake(testStart)
	s.sessions = NewSessionService(s.store, "test-secret", 7*24*time.Hour, zap.NewNop())
	s.issuedCodes = nil
	s.authenticated = nil
	s.auth = s.newAuthService()
}

// newAuthService builds a controller over the suite's collaborators; calling
// it again simulates a process restart over the same local store.
func (s *AuthServiceTestSuite) newAuthService() *AuthService {
	return NewAuthService(AuthServiceConfig{
		AuthSource:    s.authSource,
		Attempts:      s.attempts,
		Sessions:      s.sessions,
		Store:         s.store,
		Policy:        NewLockoutPolicy(testMaxAttempts, testBlockDuration),
		Challenges:    NewChallengeService(testCodeTTL),
		Clock:         s.clk,
		Logger:        zap.NewNop(),
		RemoteTimeout: 10 * time.Second,
		Platform:      "test",
		OnCodeIssued: func(_, code string) {
			s.issuedCodes = append(s.issuedCodes, code)
		},
		OnAuthenticated: func(identity string) {
			s.authenticated = append(s.authenticated, identity)
		},
	})
}

func (s *AuthServiceTestSuite) activeUser(email string) *models.AuthorizedUser {
	return &models.AuthorizedUser{
		Email:    email,
		FullName: "Test Tech",
		IsActive: true,
	}
}

func (s *AuthServiceTestSuite) lastIssuedCode() string {
	s.Require().NotEmpty(s.issuedCodes)
	return s.issuedCodes[len(s.issuedCodes)-1]
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

// --- SubmitEmail ---

func (s *AuthServiceTestSuite) TestSubmitEmail_EmptyEmail() {
	err := s.auth.SubmitEmail(context.Background(), "   ")
	assert.ErrorIs(s.T(), err, domainErrors.ErrInvalidInput)
	s.authSource.AssertNotCalled(s.T(), "FindByEmail", mock.Anything, mock.Anything)
}

func (s *AuthServiceTestSuite) TestSubmitEmail_NormalizesAndIssuesCode() {
	s.authSource.On("FindByEmail", mock.Anything, "a@x.com").Return(s.activeUser("a@x.com"), nil).Once()
	s.attempts.On("Append", mock.Anything, mock.Anything).Return(nil)

	err := s.auth.SubmitEmail(context.Background(), "  A@X.com ")
	require.NoError(s.T(), err)

	view := s.auth.State()
	assert.Equal(s.T(), StepCodeIssued, view.Step)
	assert.Equal(s.T(), "a@x.com", view.PendingEmail)
	assert.Len(s.T(), s.lastIssuedCode(), 6)

	s.attempts.AssertCalled(s.T(), "Append", mock.Anything, mock.MatchedBy(func(a *models.LoginAttempt) bool {
		return a.Email == "a@x.com" && a.Succeeded && a.Context == "code issued"
	}))
	s.authSource.AssertExpectations(s.T())
}

func (s *AuthServiceTestSuite) TestSubmitEmail_UnknownEmail() {
	s.authSource.On("FindByEmail", mock.Anything, "ghost@x.com").Return(nil, domainErrors.ErrNotFound).Once()
	s.attempts.On("Append", mock.Anything, mock.Anything).Return(nil)

	err := s.auth.SubmitEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(s.T(), err, domainErrors.ErrUnauthorized)
	assert.Equal(s.T(), StepAwaitingEmail, s.auth.State().Step)

	// Exactly one failed audit entry, and no lockout attempt consumed.
	s.attempts.AssertNumberOfCalls(s.T(), "Append", 1)
	s.attempts.AssertCalled(s.T(), "Append", mock.Anything, mock.MatchedBy(func(a *models.LoginAttempt) bool {
		return a.Email == "ghost@x.com" && !a.Succeeded
	}))
	assert.Equal(s.T(), testMaxAttempts, s.auth.State().RemainingAttempts)
}

func (s *AuthServiceTestSuite) TestSubmitEmail_TransportErrorIsGenericUnauthorized() {
	s.authSource.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("connection refused")).Once()
	s.attempts.On("Append", mock.Anything, mock.Anything).Return(nil)

	err := s.auth.SubmitEmail(context.Background(), "a@x.com")
	assert.ErrorIs(s.T(), err, domainErrors.ErrUnauthorized)
}

func (s *AuthServiceTestSuite) TestSubmitEmail_DisabledAccount() {
	user := s.activeUser("a@x.com")
	user.IsActive = false
	s.authSource.On("FindByEmail", mock.Anything, "a@x.com").Return(user, nil).Once()
	s.attempts.On("Append", mock.Anything, mock.Anything).Return(nil)

	err := s.auth.SubmitEmail(context.Background(), "a@x.com")
	assert.ErrorIs(s.T(), err, domainErrors.ErrDisabled)

	// Audited as a failure but no lockout attempt consumed.
	s.attempts.AssertCalled(s.T(), "Append", mock.Anything, mock.MatchedBy(func(a *models.LoginAttempt) bool {
		return !a.Succeeded && a.Context == "account disabled"
	}))
	assert.Equal(s.T(), testMaxAttempts, s.auth.State().RemainingAttempts)
}

func (s *AuthServiceTestSuite) TestSubmitEmail_AuditFailureDoesNotBlockFlow() {
	s.authSource.On("FindByEmail", mock.Anything, "a@x.com").Return(s.activeUser("a@x.com"), nil).Once()
	s.attempts.On("Append", mock.Anything, mock.Anything).Return(errors.New("audit store down"))

	err := s.auth.SubmitEmail(context.Background(), "a@x.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StepCodeIssued, s.auth.State().Step)
}

// --- SubmitCode ---

func (s *AuthServiceTestSuite) signInToCodeStep(email string) {
	s.authSource.On("FindByEmail", mock.Anything, email).Return(s.activeUser(email), nil).Once()
	s.attempts.On("Append", mock.Anything, mock.Anything).Return(nil)
	s.Require().NoError(s.auth.SubmitEmail(context.Background(), email))
}

func (s *AuthServiceTestSuite) TestSubmitCode_HappyPath() {
	ctx := context.Background()
	s.signInToCodeStep("a@x.com")
	s.authSource.On("UpdateLastLogin", mock.Anything, "a@x.com", mock.AnythingOfType("time.Time")).Return(nil).Once()

	identity, err := s.auth.SubmitCode(ctx, s.lastIssuedCode())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "a@x.com", identity)
	assert.Equal(s.T(), StepAuthenticated, s.auth.State().Step)
	assert.Equal(s.T(), []string{"a@x.com"}, s.authenticated)

	// Session persisted and valid.
	session, err := s.sessions.Load(ctx)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), session)
	assert.Equal(s.T(), "a@x.com", session.Email)
	assert.True(s.T(), s.sessions.IsValid(session, s.clk.Now()))

	// Lockout state reset and cleared from the store.
	assert.Equal(s.T(), testMaxAttempts, s.auth.State().RemainingAttempts)
	_, err = s.store.Get(ctx, repository.KeyAuthAttemptCount)
	assert.ErrorIs(s.T(), err, domainErrors.ErrNotFound)

	s.authSource.AssertExpectations(s.T())
}

func (s *AuthServiceTestSuite) TestSubmitCode_NoPendingChallenge() {
	_, err := s.auth.SubmitCode(context.Background(), "123456")
	assert.ErrorIs(s.T(), err, domainErrors.ErrInvalidInput)
}

func (s *AuthServiceTestSuite) TestSubmitCode_MismatchConsumesAttempt() {
	s.signInToCodeStep("a@x.com")

	_, err := s.auth.SubmitCode(context.Background(), "000000")

	var invalidCode *domainErrors.InvalidCodeError
	require.ErrorAs(s.T(), err, &invalidCode)
	assert.Equal(s.T(), testMaxAttempts-1, invalidCode.RemainingAttempts)

	// Attempt count persisted; still at the code step for a retry.
	raw, getErr := s.store.Get(context.Background(), repository.KeyAuthAttemptCount)
	require.NoError(s.T(), getErr)
	assert.Equal(s.T(), "1", raw)
	assert.Equal(s.T(), StepCodeIssued, s.auth.State().Step)
}

func (s *AuthServiceTestSuite) TestSubmitCode_ThreeMismatchesLock() {
	ctx := context.Background()
	s.signInToCodeStep("a@x.com")

	_, err := s.auth.SubmitCode(ctx, "000000")
	require.ErrorIs(s.T(), err, domainErrors.ErrInvalidCode)
	_, err = s.auth.SubmitCode(ctx, "000000")
	require.ErrorIs(s.T(), err, domainErrors.ErrInvalidCode)

	_, err = s.auth.SubmitCode(ctx, "000000")
	var locked *domainErrors.LockedError
	require.ErrorAs(s.T(), err, &locked)
	assert.Equal(s.T(), testStart.Add(testBlockDuration), locked.BlockedUntil)
	assert.Equal(s.T(), 15, locked.MinutesLeft)

	// Block deadline persisted as epoch milliseconds.
	raw, getErr := s.store.Get(ctx, repository.KeyAuthBlockedUntil)
	require.NoError(s.T(), getErr)
	assert.Equal(s.T(), strconv.FormatInt(testStart.Add(testBlockDuration).UnixMilli(), 10), raw)

	// A fourth call is rejected without consulting the remote source again.
	findCalls := len(s.authSource.Calls)
	_, err = s.auth.SubmitCode(ctx, "000000")
	require.ErrorAs(s.T(), err, &locked)
	assert.Len(s.T(), s.authSource.Calls, findCalls)

	// SubmitEmail is blocked too.
	err = s.auth.SubmitEmail(ctx, "a@x.com")
	require.ErrorAs(s.T(), err, &locked)
}

func (s *AuthServiceTestSuite) TestSubmitCode_BlockLapses() {
	ctx := context.Background()
	s.signInToCodeStep("a@x.com")
	for i := 0; i < testMaxAttempts; i++ {
		s.auth.SubmitCode(ctx, "000000")
	}

	s.clk.Advance(testBlockDuration)

	s.authSource.On("FindByEmail", mock.Anything, "a@x.com").Return(s.activeUser("a@x.com"), nil).Once()
	err := s.auth.SubmitEmail(ctx, "a@x.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), testMaxAttempts, s.auth.State().RemainingAttempts)

	// Lapsed block was cleared from the store.
	_, getErr := s.store.Get(ctx, repository.KeyAuthBlockedUntil)
	assert.ErrorIs(s.T(), getErr, domainErrors.ErrNotFound)
}

func (s *AuthServiceTestSuite) TestSubmitCode_LockoutSurvivesRestart() {
	ctx := context.Background()
	s.signInToCodeStep("a@x.com")
	for i := 0; i < testMaxAttempts; i++ {
		s.auth.SubmitCode(ctx, "000000")
	}

	// New controller over the same local store, block still in force.
	restarted := s.newAuthService()
	identity, err := restarted.CheckExistingSession(ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), identity)

	err = restarted.SubmitEmail(ctx, "a@x.com")
	var locked *domainErrors.LockedError
	require.ErrorAs(s.T(), err, &locked)
}

func (s *AuthServiceTestSuite) TestSubmitCode_ExpiredForcesEmailStep() {
	ctx := context.Background()
	s.signInToCodeStep("a@x.com")
	code := s.lastIssuedCode()

	s.clk.Advance(testCodeTTL + time.Millisecond)

	_, err := s.auth.SubmitCode(ctx, code)
	assert.ErrorIs(s.T(), err, domainErrors.ErrCodeExpired)
	assert.Equal(s.T(), StepAwaitingEmail, s.auth.State().Step)

	// Expiry consumes no lockout attempt and writes no extra audit entry.
	assert.Equal(s.T(), testMaxAttempts, s.auth.State().RemainingAttempts)
	s.attempts.AssertNumberOfCalls(s.T(), "Append", 1)
}

func (s *AuthServiceTestSuite) TestSubmitCode_LastLoginFailureDoesNotFailSignIn() {
	ctx := context.Background()
	s.signInToCodeStep("a@x.com")
	s.authSource.On("UpdateLastLogin", mock.Anything, "a@x.com", mock.AnythingOfType("time.Time")).
		Return(errors.New("timeout")).Once()

	identity, err := s.auth.SubmitCode(ctx, s.lastIssuedCode())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "a@x.com", identity)
}

// --- ChangeEmail / Logout / CheckExistingSession ---

func (s *AuthServiceTestSuite) TestChangeEmailDiscardsChallenge() {
	s.signInToCodeStep("a@x.com")
	s.auth.ChangeEmail()
	assert.Equal(s.T(), StepAwaitingEmail, s.auth.State().Step)

	_, err := s.auth.SubmitCode(context.Background(), s.lastIssuedCode())
	assert.ErrorIs(s.T(), err, domainErrors.ErrInvalidInput)
}

func (s *AuthServiceTestSuite) TestLogoutIsIdempotent() {
	ctx := context.Background()
	s.signInToCodeStep("a@x.com")
	s.authSource.On("UpdateLastLogin", mock.Anything, "a@x.com", mock.AnythingOfType("time.Time")).Return(nil).Once()
	_, err := s.auth.SubmitCode(ctx, s.lastIssuedCode())
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.auth.Logout(ctx))
	assert.Equal(s.T(), StepAwaitingEmail, s.auth.State().Step)

	session, err := s.sessions.Load(ctx)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), session)

	require.NoError(s.T(), s.auth.Logout(ctx))
}

func (s *AuthServiceTestSuite) TestCheckExistingSession_RestoresValidSession() {
	ctx := context.Background()
	require.NoError(s.T(), s.sessions.Save(ctx, &models.Session{
		Email:    "a@x.com",
		IssuedAt: testStart.Add(-24 * time.Hour),
	}))

	identity, err := s.auth.CheckExistingSession(ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "a@x.com", identity)
	assert.Equal(s.T(), StepAuthenticated, s.auth.State().Step)
	assert.Equal(s.T(), []string{"a@x.com"}, s.authenticated)
}

func (s *AuthServiceTestSuite) TestCheckExistingSession_ExpiredSessionCleared() {
	ctx := context.Background()
	require.NoError(s.T(), s.sessions.Save(ctx, &models.Session{
		Email:    "a@x.com",
		IssuedAt: testStart.Add(-7*24*time.Hour - time.Second),
	}))

	identity, err := s.auth.CheckExistingSession(ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), identity)
	assert.Equal(s.T(), StepAwaitingEmail, s.auth.State().Step)
	assert.Empty(s.T(), s.authenticated)

	session, err := s.sessions.Load(ctx)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), session)
}

func (s *AuthServiceTestSuite) TestCheckExistingSession_NoSession() {
	identity, err := s.auth.CheckExistingSession(context.Background())
	require.NoError(s.T(), err)
	assert.Empty(s.T(), identity)
	assert.Equal(s.T(), StepAwaitingEmail, s.auth.State().Step)
}

func (s *AuthServiceTestSuite) TestAuthenticatedCallbackFiresOncePerFlow() {
	ctx := context.Background()
	s.signInToCodeStep("a@x.com")
	s.authSource.On("UpdateLastLogin", mock.Anything, "a@x.com", mock.AnythingOfType("time.Time")).Return(nil)
	_, err := s.auth.SubmitCode(ctx, s.lastIssuedCode())
	require.NoError(s.T(), err)
	require.Len(s.T(), s.authenticated, 1)

	// A second successful flow after logout notifies again.
	require.NoError(s.T(), s.auth.Logout(ctx))
	s.signInToCodeStep("a@x.com")
	_, err = s.auth.SubmitCode(ctx, s.lastIssuedCode())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"a@x.com", "a@x.com"}, s.authenticated)
}
