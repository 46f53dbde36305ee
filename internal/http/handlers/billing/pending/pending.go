// Package pending реализует HTTP-обработчик ожидающего оплаты заказа
// текущей сессии. Статус берётся из базы, оплаченный заказ снимается с сессии.
package pending

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
	"github.com/magabrotheeeer/assistant-billing/internal/session"
	"github.com/magabrotheeeer/assistant-billing/internal/storage"
)

// Service источник актуального состояния заказа.
type Service interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
}

// Sessions сохраняет сессию.
type Sessions interface {
	Save(ctx context.Context, sess *session.Session) error
}

// Handler обрабатывает GET /billing/pending.
type Handler struct {
	log      *slog.Logger
	service  Service
	sessions Sessions
}

// New создаёт Handler.
func New(log *slog.Logger, service Service, sessions Sessions) *Handler {
	return &Handler{log: log, service: service, sessions: sessions}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.pending"
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
	if sess.PendingOrder == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("no pending order"))
		return
	}
	log = log.With(slog.String("order_id", sess.PendingOrder.OrderID))

	order, err := h.service.GetOrder(r.Context(), sess.PendingOrder.OrderID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		sess.PendingOrder = nil
		h.save(r.Context(), log, sess)
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("no pending order"))
		return
	case err != nil:
		log.Error("failed to load order", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	if order.IsPaid() {
		sess.PendingOrder = nil
		h.save(r.Context(), log, sess)
	}
	render.JSON(w, r, response.OKWithData(order))
}

func (h *Handler) save(ctx context.Context, log *slog.Logger, sess *session.Session) {
	if err := h.sessions.Save(ctx, sess); err != nil {
		log.Warn("failed to save session", sl.Err(err))
	}
}
