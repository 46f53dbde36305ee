// Package middlewarectx содержит HTTP middleware: проверку токена
// с загрузкой сессии и ограничение частоты запросов.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-billing/internal/http/response"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/session"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// User ключ имени пользователя в контексте.
const User Key = "username"

// Authenticator проверяет токен и возвращает сессию, на которую он указывает.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Session, error)
}

// JWTMiddleware проверяет заголовок Authorization: Bearer <token>, загружает
// сессию и кладёт её и имя пользователя в контекст запроса.
func JWTMiddleware(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Info("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			sess, err := auth.Authenticate(r.Context(), tokenStr)
			if err != nil {
				log.Info("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			ctx := session.WithSession(r.Context(), sess)
			ctx = context.WithValue(ctx, User, sess.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Username имя пользователя, положенное JWTMiddleware.
func Username(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(User).(string)
	return username, ok && username != ""
}
