// Package assistantapi собирает HTTP-приложение ассистента: маршруты и их зависимости.
package assistantapi

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/magabrotheeeer/assistant-billing/internal/http/docs"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/billing/callback"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/billing/orders"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/billing/pending"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/billing/upgrade"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/chat/history"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/chat/send"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/health"
	"github.com/magabrotheeeer/assistant-billing/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/assistant-billing/internal/services/auth"
	"github.com/magabrotheeeer/assistant-billing/internal/services/billing"
	"github.com/magabrotheeeer/assistant-billing/internal/services/conversation"
	"github.com/magabrotheeeer/assistant-billing/internal/session"
)

// Services зависимости обработчиков.
type Services struct {
	Auth         *authservice.Service
	Billing      *billing.Service
	Conversation *conversation.Logger
	Assistant    send.Assistant
	Sessions     *session.Store
	ChatLimiter  *middlewarectx.UserLimiter
	Health       map[string]health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/login", login.New(logger, s.Auth).ServeHTTP)

		callbackHandler := callback.New(logger, s.Billing)
		r.Get("/billing/callback", callbackHandler.ServeHTTP)
		r.Post("/billing/callback", callbackHandler.ServeHTTP)
		r.Post("/billing/webhook", webhook.New(logger, s.Billing).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))
			r.Post("/logout", logout.New(logger, s.Auth).ServeHTTP)
			r.Get("/messages", history.New(logger, s.Conversation).ServeHTTP)
			r.Post("/billing/upgrade", upgrade.New(logger, s.Billing, s.Sessions).ServeHTTP)
			r.Get("/billing/pending", pending.New(logger, s.Billing, s.Sessions).ServeHTTP)
			r.Get("/billing/orders", orders.New(logger, s.Billing).ServeHTTP)

			r.With(middlewarectx.RateLimitMiddleware(logger, s.ChatLimiter)).
				Post("/chat", send.New(logger, s.Assistant, s.Conversation, s.Sessions).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, s.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
