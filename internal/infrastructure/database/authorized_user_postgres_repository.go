package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/Gartalgart/cri-novadis/internal/domain/errors"
	"github.com/Gartalgart/cri-novadis/internal/domain/models"
	"github.com/Gartalgart/cri-novadis/internal/domain/repository"
)

type pgxAuthorizedUserRepository struct {
	db *pgxpool.Pool
}

// NewPgxAuthorizedUserRepository creates a new instance of pgxAuthorizedUserRepository.
func NewPgxAuthorizedUserRepository(db *pgxpool.Pool) repository.AuthorizedUserRepository {
	return &pgxAuthorizedUserRepository{db: db}
}

func (r *pgxAuthorizedUserRepository) FindByEmail(ctx context.Context, email string) (*models.AuthorizedUser, error) {
	query := `
		SELECT id, email, full_name, department, is_active, last_login, created_at
		FROM authorized_users
		WHERE email = $1`
	user := &models.AuthorizedUser{}
	err := r.db.QueryRow(ctx, query, strings.ToLower(email)).Scan(
		&user.ID, &user.Email, &user.FullName, &user.Department,
		&user.IsActive, &user.LastLoginAt, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find authorized user by email: %w", err)
	}
	return user, nil
}

func (r *pgxAuthorizedUserRepository) UpdateLastLogin(ctx context.Context, email string, at time.Time) error {
	query := `UPDATE authorized_users SET last_login = $2 WHERE email = $1`
	commandTag, err := r.db.Exec(ctx, query, strings.ToLower(email), at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *pgxAuthorizedUserRepository) List(ctx context.Context) ([]*models.AuthorizedUser, error) {
	query := `
		SELECT id, email, full_name, department, is_active, last_login, created_at
		FROM authorized_users
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorized users: %w", err)
	}
	defer rows.Close()

	var users []*models.AuthorizedUser
	for rows.Next() {
		user := &models.AuthorizedUser{}
		if err := rows.Scan(
			&user.ID, &user.Email, &user.FullName, &user.Department,
			&user.IsActive, &user.LastLoginAt, &user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan authorized user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate authorized users: %w", err)
	}
	return users, nil
}

func (r *pgxAuthorizedUserRepository) Create(ctx context.Context, user *models.AuthorizedUser) error {
	query := `
		INSERT INTO authorized_users (id, email, full_name, department, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query,
		user.ID, strings.ToLower(user.Email), user.FullName, user.Department,
		user.IsActive, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", domainErrors.ErrEmailExists, user.Email)
		}
		return fmt.Errorf("failed to create authorized user: %w", err)
	}
	return nil
}

func (r *pgxAuthorizedUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE authorized_users SET is_active = $2 WHERE id = $1`
	commandTag, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update authorized user status: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *pgxAuthorizedUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM authorized_users WHERE id = $1`
	commandTag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete authorized user: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}
