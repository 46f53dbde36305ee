// Package session хранит состояние сессии пользователя в redis.
//
// Сессия создаётся при входе и живёт, пока не истечёт TTL или пользователь
// не выйдет. Идентификатор сессии совпадает с jti выданного токена.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

// MaxHistoryTurns сколько последних обменов репликами передаётся модели как контекст.
const MaxHistoryTurns = 20

// ErrNotFound сессия истекла или не существовала.
var ErrNotFound = errors.New("session not found")

// Session состояние одного входа пользователя.
type Session struct {
	ID           string              `json:"id"`
	Username     string              `json:"username"`
	History      []models.ChatTurn   `json:"history"`
	PendingOrder *models.OrderHandle `json:"pending_order,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// AppendTurn добавляет пару реплик и отбрасывает самые старые сверх MaxHistoryTurns.
func (s *Session) AppendTurn(prompt, reply string) {
	s.History = append(s.History,
		models.ChatTurn{Role: models.RoleUser, Content: prompt},
		models.ChatTurn{Role: models.RoleAssistant, Content: reply},
	)
	if limit := MaxHistoryTurns * 2; len(s.History) > limit {
		s.History = append([]models.ChatTurn(nil), s.History[len(s.History)-limit:]...)
	}
}

// KV хранилище значений с TTL, которым пользуется Store.
type KV interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Store сохраняет сессии под ключами session:<id>.
type Store struct {
	kv  KV
	ttl time.Duration
}

// NewStore создаёт Store с временем жизни сессии ttl.
func NewStore(kv KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

func key(id string) string {
	return "session:" + id
}

// Create заводит пустую сессию для пользователя.
func (s *Store) Create(ctx context.Context, username string) (*Session, error) {
	const op = "session.Create"
	sess := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		History:   []models.ChatTurn{},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.kv.Set(ctx, key(sess.ID), sess, s.ttl); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// Get загружает сессию по идентификатору.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	const op = "session.Get"
	var sess Session
	found, err := s.kv.Get(ctx, key(id), &sess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &sess, nil
}

// Save записывает сессию и продлевает её TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	const op = "session.Save"
	if err := s.kv.Set(ctx, key(sess.ID), sess, s.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет сессию.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "session.Delete"
	if err := s.kv.Invalidate(ctx, key(id)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type ctxKey struct{}

// WithSession кладёт сессию в контекст запроса.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext достаёт сессию, положенную middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*Session)
	return sess, ok && sess != nil
}
