package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Gartalgart/cri-novadis/internal/domain/models"
	"github.com/Gartalgart/cri-novadis/internal/domain/repository"
)

type pgxLoginAttemptRepository struct {
	db *pgxpool.Pool
}

// NewPgxLoginAttemptRepository creates a new instance of pgxLoginAttemptRepository.
func NewPgxLoginAttemptRepository(db *pgxpool.Pool) repository.LoginAttemptRepository {
	return &pgxLoginAttemptRepository{db: db}
}

func (r *pgxLoginAttemptRepository) Append(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_logs (id, email, success, context, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		attempt.ID, attempt.Email, attempt.Succeeded, attempt.Context,
		attempt.IPAddress, attempt.UserAgent, attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append login attempt: %w", err)
	}
	return nil
}

func (r *pgxLoginAttemptRepository) ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, email, success, context, ip_address, user_agent, created_at
		FROM login_logs
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list login attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.LoginAttempt
	for rows.Next() {
		attempt := &models.LoginAttempt{}
		if err := rows.Scan(
			&attempt.ID, &attempt.Email, &attempt.Succeeded, &attempt.Context,
			&attempt.IPAddress, &attempt.UserAgent, &attempt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate login attempts: %w", err)
	}
	return attempts, nil
}
