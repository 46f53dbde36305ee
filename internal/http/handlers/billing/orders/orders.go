// Package orders реализует HTTP-обработчик списка заказов пользователя.
package orders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/assistant-billing/internal/http/response"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

// Service источник заказов.
type Service interface {
	ListOrders(ctx context.Context, username string) ([]*models.Order, error)
}

// Handler обрабатывает GET /billing/orders.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.orders"
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

	list, err := h.service.ListOrders(r.Context(), username)
	if err != nil {
		log.Error("failed to list orders", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	if list == nil {
		list = []*models.Order{}
	}
	render.JSON(w, r, response.OKWithData(list))
}
