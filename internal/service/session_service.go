package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	domainErrors "github.com/Gartalgart/cri-novadis/internal/domain/errors"
	"github.com/Gartalgart/cri-novadis/internal/domain/models"
	"github.com/Gartalgart/cri-novadis/internal/domain/repository"
)

// SessionService persists the signed session record in the local store and
// decides its validity against the configured time-to-live. Expiry is enforced
// by the service, not by the token: the claims carry only identity and issue
// time, so the TTL can be checked against an injected clock.
type SessionService struct {
	store  repository.KeyValueStore
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(store repository.KeyValueStore, secret string, ttl time.Duration, logger *zap.Logger) *SessionService {
	return &SessionService{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
	}
}

// Save signs the session and writes it under the userSession key. The write
// either completes or returns an error; there is no partial state.
func (s *SessionService) Save(ctx context.Context, session *models.Session) error {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  session.Email,
		IssuedAt: jwt.NewNumericDate(session.IssuedAt),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}
	if err := s.store.Set(ctx, repository.KeyUserSession, signed); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Load reads and verifies the persisted session. A missing key returns
// (nil, nil); a record that fails signature verification is cleared and
// likewise treated as absent rather than surfaced to the user. TTL is NOT
// checked here; callers revalidate with IsValid.
func (s *SessionService) Load(ctx context.Context) (*models.Session, error) {
	raw, err := s.store.Get(ctx, repository.KeyUserSession)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.Subject == "" || claims.IssuedAt == nil {
		s.logger.Warn("Discarding unverifiable session record", zap.Error(err))
		if clearErr := s.Clear(ctx); clearErr != nil {
			s.logger.Error("Failed to clear unverifiable session", zap.Error(clearErr))
		}
		return nil, nil
	}

	return &models.Session{
		Email:    claims.Subject,
		IssuedAt: claims.IssuedAt.Time,
	}, nil
}

// Clear removes the persisted session; clearing an absent session is a no-op.
func (s *SessionService) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, repository.KeyUserSession); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// IsValid reports whether the session is within its time-to-live at now.
func (s *SessionService) IsValid(session *models.Session, now time.Time) bool {
	return session != nil && session.IsValid(now, s.ttl)
}
