package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Gartalgart/cri-novadis/internal/domain/models"
	"github.com/Gartalgart/cri-novadis/internal/utils/random"
)

// Bounds of the issued one-time code. The lower bound keeps the code at six
// digits without a leading zero.
const (
	codeMin = 100000
	codeMax = 999999
)

// ChallengeService issues one-time code challenges. Delivering the code to the
// user is the caller's concern; this service only guarantees generation and
// expiry semantics.
type ChallengeService struct {
	ttl time.Duration
}

// NewChallengeService creates a ChallengeService with the given code
// time-to-live.
func NewChallengeService(ttl time.Duration) *ChallengeService {
	return &ChallengeService{ttl: ttl}
}

// Issue produces a uniformly random 6-digit code expiring ttl after now.
func (s *ChallengeService) Issue(now time.Time) (*models.CodeChallenge, error) {
	n, err := random.Int(codeMin, codeMax)
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}
	return &models.CodeChallenge{
		Code:      strconv.FormatInt(n, 10),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}, nil
}
