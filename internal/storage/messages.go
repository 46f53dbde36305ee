package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

// AppendMessage вставляет одно сообщение переписки.
func (s *Storage) AppendMessage(ctx context.Context, username, role, content string) error {
	const op = "storage.AppendMessage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if !models.ValidRole(role) {
		return fmt.Errorf("%s: %w: %q", op, ErrInvalidRole, role)
	}

	query := `INSERT INTO messages (username, role, content) VALUES ($1, $2, $3)`
	if _, err := s.DB.ExecContext(ctx, query, username, role, content); err != nil {
		return wrap(op, err)
	}
	return nil
}

// ListMessages возвращает последние limit сообщений пользователя в порядке создания.
func (s *Storage) ListMessages(ctx context.Context, username string, limit int) ([]*models.Message, error) {
	const op = "storage.ListMessages"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, username, role, content, created_at FROM (
				  SELECT id, username, role, content, created_at
				  FROM messages
				  WHERE username = $1
				  ORDER BY created_at DESC, id DESC
				  LIMIT $2
			  ) recent
			  ORDER BY created_at, id`
	rows, err := s.DB.QueryContext(ctx, query, username, limit)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Username, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, wrap(op, err)
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}
