// Package conversation записывает переписку пользователя с ассистентом.
package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/assistant-billing/internal/lib/metrics"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

// DefaultHistoryLimit сколько сообщений отдаётся, если лимит не задан.
const DefaultHistoryLimit = 100

// Repository хранилище сообщений.
type Repository interface {
	AppendMessage(ctx context.Context, username, role, content string) error
	ListMessages(ctx context.Context, username string, limit int) ([]*models.Message, error)
}

// Logger записывает обмены репликами.
type Logger struct {
	repo Repository
	log  *slog.Logger
}

// New создаёт Logger.
func New(log *slog.Logger, repo Repository) *Logger {
	return &Logger{repo: repo, log: log}
}

// LogTurn сохраняет реплику пользователя, затем ответ ассистента.
//
// Если второе сохранение не удалось, первое остаётся в базе: реплики
// самостоятельны и не образуют транзакцию.
func (l *Logger) LogTurn(ctx context.Context, username, prompt, reply string) error {
	const op = "conversation.LogTurn"
	log := l.log.With(sl.Op(op), slog.String("username", username))

	if err := l.repo.AppendMessage(ctx, username, models.RoleUser, prompt); err != nil {
		log.Error("failed to save user message", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := l.repo.AppendMessage(ctx, username, models.RoleAssistant, reply); err != nil {
		metrics.ChatTurnsTotal.WithLabelValues("partial").Inc()
		log.Error("failed to save assistant message, user message kept", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.ChatTurnsTotal.WithLabelValues("logged").Inc()
	return nil
}

// History возвращает последние limit сообщений пользователя в порядке создания.
func (l *Logger) History(ctx context.Context, username string, limit int) ([]*models.Message, error) {
	const op = "conversation.History"
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	msgs, err := l.repo.ListMessages(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msgs, nil
}
