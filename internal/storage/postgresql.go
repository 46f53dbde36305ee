// Package storage реализует хранилище данных на основе PostgreSQL
// для пользователей, сообщений переписки и платёжных заказов.
// Каждая операция берёт соединение из пула на время вызова и
// возвращает его на любом пути выхода.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/assistant-billing/internal/migrations"
)

var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey нарушено ограничение уникальности.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrUnavailable база данных недоступна.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrInvalidRole роль сообщения не user и не assistant.
	ErrInvalidRole = errors.New("invalid message role")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// Initialize создаёт схему, если её ещё нет. Безопасно вызывать при каждом старте.
func (s *Storage) Initialize(ctx context.Context) error {
	const op = "storage.Initialize"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if err := migrations.Run(s.DB); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Ping проверяет доступность базы данных.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.Ping"
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	return nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// wrap приводит ошибку драйвера к ошибкам пакета.
func wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.As(err, &pgErr):
		if pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w: %s", op, ErrDuplicateKey, pgErr.ConstraintName)
		}
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}
