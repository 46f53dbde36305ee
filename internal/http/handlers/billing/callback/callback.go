// Package callback реализует HTTP-обработчик возврата пользователя
// со страницы оплаты провайдера.
//
// Параметры запроса не считаются доказательством оплаты: заказ
// подтверждается только после проверки подписи или статуса у провайдера.
package callback

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-billing/internal/http/response"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/services/billing"
)

const statusPaid = "paid"

// Service подтверждает оплату.
type Service interface {
	ConfirmUpgrade(ctx context.Context, req billing.ConfirmRequest) (billing.ConfirmResult, error)
}

// Data результат подтверждения.
type Data struct {
	OrderID string `json:"order_id"`
	Result  string `json:"result"`
}

// Handler обрабатывает GET|POST /billing/callback.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Возврат со страницы оплаты
// @Tags Billing
// @Produce  json
// @Param order_id query string false "Идентификатор заказа"
// @Param razorpay_order_id query string false "Идентификатор заказа у провайдера"
// @Param razorpay_payment_id query string false "Идентификатор платежа"
// @Param razorpay_signature query string false "Подпись провайдера"
// @Param payment_status query string false "Статус, переданный провайдером"
// @Success 200 {object} response.Response{data=Data}
// @Failure 400 {object} response.ErrorResponse
// @Failure 402 {object} response.ErrorResponse "Оплата не подтверждена"
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /billing/callback [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.callback"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := r.ParseForm(); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid form"))
		return
	}

	if status := r.Form.Get("payment_status"); status != "" && status != statusPaid {
		log.Info("payment not completed", slog.String("payment_status", status))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("payment not completed"))
		return
	}

	req := billing.ConfirmRequest{
		OrderID:   r.Form.Get("order_id"),
		PaymentID: r.Form.Get("razorpay_payment_id"),
		Signature: r.Form.Get("razorpay_signature"),
	}
	if req.OrderID == "" {
		req.OrderID = r.Form.Get("razorpay_order_id")
	}
	if req.OrderID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("order_id is required"))
		return
	}
	log = log.With(slog.String("order_id", req.OrderID))

	res, err := h.service.ConfirmUpgrade(r.Context(), req)
	if err != nil {
		log.Warn("confirmation failed", sl.Err(err))
		status, msg := errorStatus(err)
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	data := Data{OrderID: req.OrderID, Result: res.String()}
	if res == billing.NotFound {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.ErrorWithData("order not found", data))
		return
	}

	log.Info("payment confirmed", slog.String("result", data.Result))
	render.JSON(w, r, response.OKWithData(data))
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid payment signature"
	case errors.Is(err, billing.ErrNotSettled):
		return http.StatusPaymentRequired, "payment not settled"
	case errors.Is(err, billing.ErrExternalService):
		return http.StatusBadGateway, "payment provider unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
