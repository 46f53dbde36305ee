// Package auth проверяет учётные данные, выдаёт токен и заводит сессию.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/assistant-billing/internal/config"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/password"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/models"
	"github.com/magabrotheeeer/assistant-billing/internal/session"
)

var (
	// ErrInvalidCredentials неизвестный пользователь или неверный пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized токен недействителен или сессия закрыта.
	ErrUnauthorized = errors.New("unauthorized")
)

// UserRepository заводит пользователя при первом входе.
type UserRepository interface {
	EnsureUser(ctx context.Context, username, email string) (*models.User, error)
}

// SessionStore хранилище сессий.
type SessionStore interface {
	Create(ctx context.Context, username string) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error
}

// LoginResult токен и пользователь после успешного входа.
type LoginResult struct {
	Token     string
	SessionID string
	User      *models.User
}

// Service сервис аутентификации.
type Service struct {
	credentials map[string]config.Credential
	users       UserRepository
	sessions    SessionStore
	jwtMaker    jwt.Maker
	log         *slog.Logger
}

// New создаёт Service. credentials читаются из конфига, пароли в них хранятся bcrypt-хэшами.
func New(log *slog.Logger, credentials map[string]config.Credential, users UserRepository, sessions SessionStore, jwtMaker jwt.Maker) *Service {
	return &Service{
		credentials: credentials,
		users:       users,
		sessions:    sessions,
		jwtMaker:    jwtMaker,
		log:         log,
	}
}

// Login проверяет пароль, заводит пользователя в базе при первом входе,
// открывает сессию и выдаёт токен с её идентификатором.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (*LoginResult, error) {
	const op = "auth.Login"
	log := s.log.With(sl.Op(op), slog.String("username", username))

	cred, ok := s.credentials[username]
	if !ok {
		log.Info("unknown username")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := password.CompareHash(cred.Password, rawPassword); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			log.Error("stored password hash is unusable", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.users.EnsureUser(ctx, username, cred.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess, err := s.sessions.Create(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.jwtMaker.GenerateToken(username, sess.ID)
	if err != nil {
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("plan", user.Plan))
	return &LoginResult{Token: token, SessionID: sess.ID, User: user}, nil
}

// Authenticate проверяет токен и загружает сессию, на которую он указывает.
func (s *Service) Authenticate(ctx context.Context, token string) (*session.Session, error) {
	const op = "auth.Authenticate"
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthorized, err)
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID())
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w: session closed", op, ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sess.Username != claims.Username {
		return nil, fmt.Errorf("%s: %w: session owner mismatch", op, ErrUnauthorized)
	}
	return sess, nil
}

// Logout закрывает сессию. Токен после этого не проходит Authenticate.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	const op = "auth.Logout"
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
