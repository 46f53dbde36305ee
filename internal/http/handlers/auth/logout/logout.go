// Package logout реализует HTTP-обработчик выхода: сессия закрывается,
// выданный ранее токен перестаёт приниматься.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-billing/internal/http/response"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/session"
)

// Service закрывает сессию.
type Service interface {
	Logout(ctx context.Context, sessionID string) error
}

// Handler обрабатывает POST /logout.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess, ok := session.FromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("session missing"))
		return
	}

	if err := h.service.Logout(r.Context(), sess.ID); err != nil {
		log.Error("failed to close session", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("user logged out", slog.String("username", sess.Username))
	render.JSON(w, r, response.OK())
}
