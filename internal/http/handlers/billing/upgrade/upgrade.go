// Package upgrade реализует HTTP-обработчик начала перехода на Pro-тариф.
package upgrade

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-billing/internal/http/response"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/models"
	"github.com/magabrotheeeer/assistant-billing/internal/services/billing"
	"github.com/magabrotheeeer/assistant-billing/internal/session"
)

// Service создаёт заказ у провайдера.
type Service interface {
	BeginUpgrade(ctx context.Context, username string) (*models.OrderHandle, error)
}

// Sessions сохраняет сессию с ожидающим заказом.
type Sessions interface {
	Save(ctx context.Context, sess *session.Session) error
}

// Handler обрабатывает POST /billing/upgrade.
type Handler struct {
	log      *slog.Logger
	service  Service
	sessions Sessions
}

// New создаёт Handler.
func New(log *slog.Logger, service Service, sessions Sessions) *Handler {
	return &Handler{log: log, service: service, sessions: sessions}
}

// ServeHTTP godoc
// @Summary Создать заказ на Pro-тариф
// @Tags Billing
// @Produce  json
// @Security BearerAuth
// @Success 201 {object} response.Response{data=models.OrderHandle}
// @Failure 401 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse "Провайдер недоступен"
// @Router /billing/upgrade [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.upgrade"
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
	log = log.With(slog.String("username", sess.Username))

	handle, err := h.service.BeginUpgrade(r.Context(), sess.Username)
	if err != nil {
		log.Error("failed to begin upgrade", sl.Err(err))
		if errors.Is(err, billing.ErrExternalService) {
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, response.Error("payment provider unavailable"))
			return
		}
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	sess.PendingOrder = handle
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		log.Warn("failed to remember pending order", sl.Err(err))
	}

	log.Info("order created", slog.String("order_id", handle.OrderID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(handle))
}
