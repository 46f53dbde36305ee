package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

// EnsureUser сохраняет пользователя при первой успешной аутентификации
// и возвращает запись из базы. Существующий пользователь не меняется.
func (s *Storage) EnsureUser(ctx context.Context, username, email string) (*models.User, error) {
	const op = "storage.EnsureUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (username, email)
			  VALUES ($1, $2)
			  ON CONFLICT (username) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, username, email); err != nil {
		return nil, wrap(op, err)
	}
	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, username, email, plan, created_at
			  FROM users
			  WHERE username = $1`
	u := &models.User{}
	if err := s.DB.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.Email, &u.Plan, &u.CreatedAt); err != nil {
		return nil, wrap(op, err)
	}
	return u, nil
}
