package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/Gartalgart/cri-novadis/internal/domain/errors"
	"github.com/Gartalgart/cri-novadis/internal/domain/models"
	"github.com/Gartalgart/cri-novadis/internal/domain/repository"
	"github.com/Gartalgart/cri-novadis/internal/utils/clock"
	"github.com/Gartalgart/cri-novadis/internal/utils/metrics"
)

// Step identifies where the sign-in flow currently stands.
type Step int

const (
	StepAwaitingEmail Step = iota
	StepCodeIssued
	StepAuthenticated
)

func (s Step) String() string {
	switch s {
	case StepAwaitingEmail:
		return "awaiting_email"
	case StepCodeIssued:
		return "code_issued"
	case StepAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// The flow state is a tagged value carrying only the data valid for its step,
// so a pending code cannot coexist with an authenticated identity.
type flowState interface {
	step() Step
}

type awaitingEmail struct{}

type codeIssued struct {
	email     string
	challenge *models.CodeChallenge
}

type authenticated struct {
	identity string
}

func (awaitingEmail) step() Step { return StepAwaitingEmail }
func (codeIssued) step() Step    { return StepCodeIssued }
func (authenticated) step() Step { return StepAuthenticated }

// ViewState is the observable snapshot exposed to the presentation layer.
type ViewState struct {
	Step              Step
	PendingEmail      string
	Identity          string
	RemainingAttempts int
	BlockedUntil      *time.Time
}

// AuthService drives the two-step sign-in flow: email authorization, one-time
// code verification, session establishment. An internal mutex serializes its
// operations; callers need no external locking.
type AuthService struct {
	mu      sync.Mutex
	state   flowState
	lockout models.LockoutState

	authSource repository.AuthorizationSource
	attempts   repository.LoginAttemptRepository
	sessions   *SessionService
	store      repository.KeyValueStore
	policy     *LockoutPolicy
	challenges *ChallengeService
	clk        clock.Clock
	logger     *zap.Logger

	remoteTimeout time.Duration
	platform      string

	// onCodeIssued hands the generated code to the delivery collaborator.
	// onAuthenticated fires once per successful flow, including a startup
	// session restore.
	onCodeIssued    func(email, code string)
	onAuthenticated func(identity string)
	authNotified    bool
}

// AuthServiceConfig holds the dependencies of AuthService.
type AuthServiceConfig struct {
	AuthSource      repository.AuthorizationSource
	Attempts        repository.LoginAttemptRepository
	Sessions        *SessionService
	Store           repository.KeyValueStore
	Policy          *LockoutPolicy
	Challenges      *ChallengeService
	Clock           clock.Clock
	Logger          *zap.Logger
	RemoteTimeout   time.Duration
	Platform        string
	OnCodeIssued    func(email, code string)
	OnAuthenticated func(identity string)
}

// NewAuthService creates a new AuthService in the AwaitingEmail state.
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		state:           awaitingEmail{},
		authSource:      cfg.AuthSource,
		attempts:        cfg.Attempts,
		sessions:        cfg.Sessions,
		store:           cfg.Store,
		policy:          cfg.Policy,
		challenges:      cfg.Challenges,
		clk:             cfg.Clock,
		logger:          cfg.Logger,
		remoteTimeout:   cfg.RemoteTimeout,
		platform:        cfg.Platform,
		onCodeIssued:    cfg.OnCodeIssued,
		onAuthenticated: cfg.OnAuthenticated,
	}
}

// CheckExistingSession restores state on application start: it loads the
// persisted lockout state, then short-circuits to Authenticated if a valid
// session exists. An expired or unverifiable session is cleared silently and
// the flow stays at the email step.
func (s *AuthService) CheckExistingSession(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	s.lockout = s.loadLockout(ctx, now)

	session, err := s.sessions.Load(ctx)
	if err != nil {
		// A broken local store should not lock the user out of the sign-in
		// flow; treat the session as absent.
		s.logger.Error("Failed to load persisted session", zap.Error(err))
		metrics.SessionRestoresTotal.WithLabelValues("error").Inc()
		s.state = awaitingEmail{}
		return "", nil
	}
	if session == nil {
		metrics.SessionRestoresTotal.WithLabelValues("absent").Inc()
		s.state = awaitingEmail{}
		return "", nil
	}
	if !s.sessions.IsValid(session, now) {
		if err := s.sessions.Clear(ctx); err != nil {
			s.logger.Error("Failed to clear expired session", zap.Error(err))
		}
		metrics.SessionRestoresTotal.WithLabelValues("expired").Inc()
		s.state = awaitingEmail{}
		return "", nil
	}

	s.state = authenticated{identity: session.Email}
	s.notifyAuthenticated(session.Email)
	metrics.SessionRestoresTotal.WithLabelValues("restored").Inc()
	s.logger.Info("Session restored", zap.String("email", session.Email))
	return session.Email, nil
}

// SubmitEmail checks the email against the lockout policy and the remote
// authorization source, and on success issues a one-time code and moves the
// flow to CodeIssued.
func (s *AuthService) SubmitEmail(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", domainErrors.ErrInvalidInput)
	}

	now := s.clk.Now()
	if err := s.checkLockout(ctx, now); err != nil {
		return err
	}

	record, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			s.appendAttempt(ctx, email, false, "email not authorized", now)
			metrics.LoginAttemptsTotal.WithLabelValues("unauthorized").Inc()
			return domainErrors.ErrUnauthorized
		}
		// Deliberately indistinguishable from an unknown email for the user.
		s.logger.Error("Authorization lookup failed", zap.Error(err), zap.String("email", email))
		s.appendAttempt(ctx, email, false, "authorization lookup failed", now)
		metrics.LoginAttemptsTotal.WithLabelValues("transport_error").Inc()
		return domainErrors.ErrUnauthorized
	}

	if !record.IsActive {
		// Logged as a failure but does not consume a lockout attempt: only
		// code mismatches do.
		s.appendAttempt(ctx, email, false, "account disabled", now)
		metrics.LoginAttemptsTotal.WithLabelValues("disabled").Inc()
		return domainErrors.ErrDisabled
	}

	challenge, err := s.challenges.Issue(now)
	if err != nil {
		return fmt.Errorf("failed to issue verification code: %w", err)
	}

	s.appendAttempt(ctx, email, true, "code issued", now)
	s.state = codeIssued{email: email, challenge: challenge}
	metrics.LoginAttemptsTotal.WithLabelValues("code_issued").Inc()
	s.logger.Info("Verification code issued", zap.String("email", email),
		zap.Time("expires_at", challenge.ExpiresAt))

	if s.onCodeIssued != nil {
		s.onCodeIssued(email, challenge.Code)
	}
	return nil
}

// SubmitCode verifies the pending one-time code. A match establishes the
// session and returns the authenticated identity; a mismatch consumes a
// lockout attempt; an expired code forces the flow back to the email step.
func (s *AuthService) SubmitCode(ctx context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	if err := s.checkLockout(ctx, now); err != nil {
		return "", err
	}

	current, ok := s.state.(codeIssued)
	if !ok {
		return "", fmt.Errorf("%w: no verification code pending", domainErrors.ErrInvalidInput)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: code is required", domainErrors.ErrInvalidInput)
	}

	switch current.challenge.Verify(code, now) {
	case models.CodeExpired:
		s.state = awaitingEmail{}
		metrics.LoginAttemptsTotal.WithLabelValues("code_expired").Inc()
		return "", domainErrors.ErrCodeExpired

	case models.CodeMismatch:
		next := s.policy.RecordFailure(s.lockout, now)
		// Audit before the lockout write so a crash in between over-reports
		// failures rather than under-enforcing the block.
		s.appendAttempt(ctx, current.email, false,
			fmt.Sprintf("code mismatch (attempt %d)", next.AttemptCount), now)
		s.lockout = next
		s.persistLockout(ctx, next)

		if next.Blocked(now) {
			s.state = awaitingEmail{}
			metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
			s.logger.Warn("Sign-in locked", zap.String("email", current.email),
				zap.Timep("blocked_until", next.BlockedUntil))
			return "", domainErrors.NewLockedError(*next.BlockedUntil, now)
		}
		metrics.LoginAttemptsTotal.WithLabelValues("code_mismatch").Inc()
		return "", &domainErrors.InvalidCodeError{RemainingAttempts: s.policy.RemainingAttempts(next)}

	default: // models.CodeOK
		s.lockout = s.policy.RecordSuccess()
		s.persistLockout(ctx, s.lockout)

		if err := s.updateLastLogin(ctx, current.email, now); err != nil {
			// Best effort, as in the remote collaborator contract.
			s.logger.Error("Failed to update last login", zap.Error(err), zap.String("email", current.email))
		}
		s.appendAttempt(ctx, current.email, true, "code verified", now)

		session := &models.Session{Email: current.email, IssuedAt: now}
		if err := s.sessions.Save(ctx, session); err != nil {
			// Stay at the code step: the user may retry once the store recovers.
			metrics.LoginAttemptsTotal.WithLabelValues("session_save_failed").Inc()
			return "", fmt.Errorf("failed to establish session: %w", err)
		}

		s.state = authenticated{identity: current.email}
		s.notifyAuthenticated(current.email)
		metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
		s.logger.Info("Sign-in complete", zap.String("email", current.email))
		return current.email, nil
	}
}

// Logout clears the persisted session and returns the flow to the email step.
// It is idempotent.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = awaitingEmail{}
	s.authNotified = false
	if err := s.sessions.Clear(ctx); err != nil {
		return err
	}
	return nil
}

// ChangeEmail abandons any pending code challenge and returns the flow to the
// email step. The challenge is discarded; persisted lockout state and audit
// entries are untouched.
func (s *AuthService) ChangeEmail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.(codeIssued); ok {
		s.state = awaitingEmail{}
	}
}

// State returns a snapshot of the observable flow state.
func (s *AuthService) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := ViewState{
		Step:              s.state.step(),
		RemainingAttempts: s.policy.RemainingAttempts(s.lockout),
	}
	if s.lockout.BlockedUntil != nil {
		blockedUntil := *s.lockout.BlockedUntil
		view.BlockedUntil = &blockedUntil
	}
	switch st := s.state.(type) {
	case codeIssued:
		view.PendingEmail = st.email
	case authenticated:
		view.Identity = st.identity
	}
	return view
}

// checkLockout refreshes the lockout state at now and returns a LockedError
// while the block holds. A lapsed block is reset and the reset persisted.
func (s *AuthService) checkLockout(ctx context.Context, now time.Time) error {
	allowed, next := s.policy.CanAttempt(s.lockout, now)
	if !allowed {
		return domainErrors.NewLockedError(*next.BlockedUntil, now)
	}
	if s.lockout.BlockedUntil != nil && next.BlockedUntil == nil {
		// Block lapsed: reset the persisted state too.
		s.persistLockout(ctx, next)
	}
	s.lockout = next
	return nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*models.AuthorizedUser, error) {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	record, err := s.authSource.FindByEmail(rctx, email)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			metrics.RemoteOperationsTotal.WithLabelValues("find_by_email", "not_found").Inc()
		} else {
			metrics.RemoteOperationsTotal.WithLabelValues("find_by_email", "error").Inc()
		}
		return nil, err
	}
	metrics.RemoteOperationsTotal.WithLabelValues("find_by_email", "ok").Inc()
	return record, nil
}

func (s *AuthService) updateLastLogin(ctx context.Context, email string, at time.Time) error {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	if err := s.authSource.UpdateLastLogin(rctx, email, at); err != nil {
		metrics.RemoteOperationsTotal.WithLabelValues("update_last_login", "error").Inc()
		return err
	}
	metrics.RemoteOperationsTotal.WithLabelValues("update_last_login", "ok").Inc()
	return nil
}

// appendAttempt writes an audit entry. Audit is best-effort telemetry, never a
// control dependency: failures are logged and the flow continues.
func (s *AuthService) appendAttempt(ctx context.Context, email string, succeeded bool, detail string, now time.Time) {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	attempt := &models.LoginAttempt{
		ID:        uuid.New(),
		Email:     email,
		Succeeded: succeeded,
		Context:   detail,
		IPAddress: "unknown",
		UserAgent: s.platform,
		CreatedAt: now,
	}
	if err := s.attempts.Append(rctx, attempt); err != nil {
		metrics.RemoteOperationsTotal.WithLabelValues("append_login_attempt", "error").Inc()
		s.logger.Warn("Failed to append login attempt", zap.Error(err),
			zap.String("email", email), zap.Bool("succeeded", succeeded))
		return
	}
	metrics.RemoteOperationsTotal.WithLabelValues("append_login_attempt", "ok").Inc()
}

// loadLockout reads the persisted lockout state, normalizing a lapsed block to
// the zero state. Unreadable values degrade to the zero state rather than
// blocking sign-in on a corrupt local store.
func (s *AuthService) loadLockout(ctx context.Context, now time.Time) models.LockoutState {
	var state models.LockoutState

	if raw, err := s.store.Get(ctx, repository.KeyAuthAttemptCount); err == nil {
		if count, convErr := strconv.Atoi(raw); convErr == nil && count > 0 {
			state.AttemptCount = count
		}
	} else if !errors.Is(err, domainErrors.ErrNotFound) {
		s.logger.Error("Failed to read attempt count", zap.Error(err))
	}

	if raw, err := s.store.Get(ctx, repository.KeyAuthBlockedUntil); err == nil {
		if millis, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			blockedUntil := time.UnixMilli(millis)
			state.BlockedUntil = &blockedUntil
		}
	} else if !errors.Is(err, domainErrors.ErrNotFound) {
		s.logger.Error("Failed to read block deadline", zap.Error(err))
	}

	if allowed, next := s.policy.CanAttempt(state, now); allowed && state.BlockedUntil != nil {
		// The persisted block lapsed while the process was down.
		s.persistLockout(ctx, next)
		return next
	}
	return state
}

// persistLockout writes the lockout state through to the local store. The
// in-memory copy remains authoritative if the write fails, so enforcement
// fails closed for this process.
func (s *AuthService) persistLockout(ctx context.Context, state models.LockoutState) {
	if state.AttemptCount == 0 && state.BlockedUntil == nil {
		if err := s.store.Delete(ctx, repository.KeyAuthAttemptCount); err != nil {
			s.logger.Error("Failed to clear attempt count", zap.Error(err))
		}
		if err := s.store.Delete(ctx, repository.KeyAuthBlockedUntil); err != nil {
			s.logger.Error("Failed to clear block deadline", zap.Error(err))
		}
		return
	}

	if err := s.store.Set(ctx, repository.KeyAuthAttemptCount, strconv.Itoa(state.AttemptCount)); err != nil {
		s.logger.Error("Failed to persist attempt count", zap.Error(err))
	}
	if state.BlockedUntil != nil {
		millis := strconv.FormatInt(state.BlockedUntil.UnixMilli(), 10)
		if err := s.store.Set(ctx, repository.KeyAuthBlockedUntil, millis); err != nil {
			s.logger.Error("Failed to persist block deadline", zap.Error(err))
		}
	} else {
		if err := s.store.Delete(ctx, repository.KeyAuthBlockedUntil); err != nil {
			s.logger.Error("Failed to clear block deadline", zap.Error(err))
		}
	}
}

func (s *AuthService) notifyAuthenticated(identity string) {
	if s.onAuthenticated != nil && !s.authNotified {
		s.authNotified = true
		s.onAuthenticated(identity)
	}
}
