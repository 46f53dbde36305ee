// Package history реализует HTTP-обработчик выдачи переписки пользователя.
package history

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/assistant-billing/internal/http/response"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

const maxLimit = 1000

// Service источник переписки.
type Service interface {
	History(ctx context.Context, username string, limit int) ([]*models.Message, error)
}

// Handler обрабатывает GET /messages?limit=N.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.history"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	username, ok := middlewarectx.Username(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	msgs, err := h.service.History(r.Context(), username, limit)
	if err != nil {
		log.Error("failed to load history", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	render.JSON(w, r, response.OKWithData(msgs))
}
