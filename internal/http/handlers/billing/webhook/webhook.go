// Package webhook реализует HTTP-обработчик уведомлений платёжного провайдера.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-billing/internal/http/response"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/services/billing"
)

const (
	// SignatureHeader заголовок с подписью тела запроса.
	SignatureHeader = "X-Razorpay-Signature"
	maxBodyBytes    = 1 << 20
)

// Service подтверждает оплату по уведомлению.
type Service interface {
	ConfirmFromWebhook(ctx context.Context, body []byte, signature string) (billing.ConfirmResult, error)
}

// Data результат обработки уведомления.
type Data struct {
	Result string `json:"result"`
}

// Handler обрабатывает POST /billing/webhook.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid body"))
		return
	}

	res, err := h.service.ConfirmFromWebhook(r.Context(), body, r.Header.Get(SignatureHeader))
	switch {
	case err == nil:
		log.Info("webhook processed", slog.String("result", res.String()))
		render.JSON(w, r, response.OKWithData(Data{Result: res.String()}))
	case errors.Is(err, billing.ErrIgnoredEvent):
		render.JSON(w, r, response.OKWithData(Data{Result: "ignored"}))
	case errors.Is(err, billing.ErrInvalidSignature):
		log.Warn("webhook signature mismatch")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
	case errors.Is(err, billing.ErrInvalidPayload):
		log.Warn("bad webhook payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payload"))
	case errors.Is(err, billing.ErrNotSettled):
		log.Warn("webhook for unsettled order", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("payment not settled"))
	default:
		log.Error("failed to process webhook", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
	}
}
