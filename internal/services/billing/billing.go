// Package billing ведёт заказ на Pro-тариф от создания у платёжного
// провайдера до подтверждения оплаты.
//
// Заказ переходит только из created в paid. Перед переходом оплата
// проверяется на стороне сервера: подписью провайдера или запросом
// статуса заказа у провайдера. Заказы, так и не оплаченные, попадают
// в отчёт о брошенных, но не удаляются.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/magabrotheeeer/assistant-billing/internal/lib/metrics"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/models"
	"github.com/magabrotheeeer/assistant-billing/internal/paymentprovider"
	"github.com/magabrotheeeer/assistant-billing/internal/storage"
)

var (
	// ErrExternalService провайдер недоступен или отклонил запрос. Повтор на стороне вызывающего.
	ErrExternalService = errors.New("payment provider unavailable")
	// ErrNotSettled провайдер не подтвердил оплату заказа.
	ErrNotSettled = errors.New("order is not settled")
	// ErrInvalidSignature подпись callback или webhook не сошлась.
	ErrInvalidSignature = errors.New("invalid payment signature")
	// ErrInvalidPayload тело webhook не разобрано или не содержит заказа.
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrIgnoredEvent событие webhook не относится к оплате заказа.
	ErrIgnoredEvent = errors.New("webhook event ignored")
)

// Источники подтверждения, попадают в метрики и события.
const (
	SourceCallback = "callback"
	SourceWebhook  = "webhook"
)

// События webhook, которые подтверждают оплату.
const (
	EventOrderPaid       = "order.paid"
	EventPaymentCaptured = "payment.captured"
)

// ConfirmResult исход подтверждения оплаты.
type ConfirmResult int

const (
	// Confirmed заказ переведён в paid этим вызовом.
	Confirmed ConfirmResult = iota + 1
	// AlreadyConfirmed заказ был оплачен раньше, ничего не изменилось.
	AlreadyConfirmed
	// NotFound заказа с таким идентификатором нет. Запись не создаётся.
	NotFound
)

func (r ConfirmResult) String() string {
	switch r {
	case Confirmed:
		return "confirmed"
	case AlreadyConfirmed:
		return "already_confirmed"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Repository хранилище заказов.
type Repository interface {
	CreateOrder(ctx context.Context, username, orderID string, amount int64, currency string) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, username string) ([]*models.Order, error)
	MarkOrderPaid(ctx context.Context, orderID string) (storage.PaidResult, *models.Order, error)
	ClaimAbandonedOrders(ctx context.Context, olderThan time.Duration) ([]*models.Order, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Provider платёжный провайдер.
type Provider interface {
	CreateOrder(ctx context.Context, req paymentprovider.CreateOrderRequest) (*paymentprovider.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*paymentprovider.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	KeyID() string
}

// Publisher отправляет события заказов во внешнюю шину.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Settings цена Pro-тарифа и адрес, на который провайдер вернёт пользователя.
type Settings struct {
	Price       int64
	Currency    string
	AppURL      string
	ProductName string
}

// OrderEvent сообщение о заказе для шины событий.
type OrderEvent struct {
	Event     string     `json:"event"`
	OrderID   string     `json:"order_id"`
	Username  string     `json:"username"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Status    string     `json:"status"`
	Source    string     `json:"source,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// ConfirmRequest данные, с которыми провайдер вернул пользователя.
// PaymentID и Signature необязательны: без них статус спрашивается у провайдера.
type ConfirmRequest struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Service сервис жизненного цикла заказа.
type Service struct {
	repo      Repository
	provider  Provider
	publisher Publisher
	settings  Settings
	log       *slog.Logger
}

// New создаёт сервис. publisher может быть nil, тогда события не публикуются.
func New(log *slog.Logger, repo Repository, provider Provider, publisher Publisher, settings Settings) *Service {
	if settings.ProductName == "" {
		settings.ProductName = "AI Assistant Pro"
	}
	return &Service{
		repo:      repo,
		provider:  provider,
		publisher: publisher,
		settings:  settings,
		log:       log,
	}
}

// BeginUpgrade создаёт заказ у провайдера на настроенную сумму и сохраняет его.
func (s *Service) BeginUpgrade(ctx context.Context, username string) (*models.OrderHandle, error) {
	const op = "billing.BeginUpgrade"
	log := s.log.With(sl.Op(op), slog.String("username", username))

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	po, err := s.provider.CreateOrder(ctx, paymentprovider.CreateOrderRequest{
		Amount:         s.settings.Price,
		Currency:       s.settings.Currency,
		Receipt:        username,
		PaymentCapture: 1,
		Notes:          map[string]string{"username": username},
	})
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("payment").Inc()
		log.Error("failed to create order at provider", sl.Err(err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrExternalService, err)
	}

	if err := s.repo.CreateOrder(ctx, username, po.ID, s.settings.Price, s.settings.Currency); err != nil {
		log.Error("failed to save order", slog.String("order_id", po.ID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.OrdersCreatedTotal.Inc()
	log.Info("order created", slog.String("order_id", po.ID))

	callbackURL, err := s.callbackURL(po.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.OrderHandle{
		OrderID:  po.ID,
		Amount:   s.settings.Price,
		Currency: s.settings.Currency,
		Status:   models.OrderStatusCreated,
		Checkout: models.CheckoutInfo{
			KeyID:       s.provider.KeyID(),
			Name:        s.settings.ProductName,
			Description: "Upgrade to Pro",
			CallbackURL: callbackURL,
			Prefill: models.CheckoutPrefill{
				Name:  user.Username,
				Email: user.Email,
			},
		},
	}, nil
}

func (s *Service) callbackURL(orderID string) (string, error) {
	u, err := url.Parse(s.settings.AppURL)
	if err != nil {
		return "", fmt.Errorf("parse app url: %w", err)
	}
	u = u.JoinPath("/api/v1/billing/callback")
	q := url.Values{}
	q.Set("payment_status", "paid")
	q.Set("order_id", orderID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ConfirmUpgrade подтверждает оплату заказа после возврата пользователя от провайдера.
//
// Неизвестный заказ даёт NotFound без обращения к провайдеру. Повторный вызов
// для оплаченного заказа даёт AlreadyConfirmed и не меняет paid_at.
func (s *Service) ConfirmUpgrade(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	const op = "billing.ConfirmUpgrade"
	log := s.log.With(sl.Op(op), slog.String("order_id", req.OrderID))

	order, res, err := s.lookup(ctx, req.OrderID)
	if err != nil || res != 0 {
		s.record(SourceCallback, res, err)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("confirmation short-circuited", slog.String("result", res.String()))
		return res, nil
	}

	if err := s.verify(ctx, order, req); err != nil {
		s.record(SourceCallback, 0, err)
		log.Warn("payment verification failed", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	res, err = s.markPaid(ctx, order.OrderID, SourceCallback)
	s.record(SourceCallback, res, err)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ConfirmFromWebhook подтверждает оплату по уведомлению провайдера.
// Подпись проверяется по сырому телу запроса.
func (s *Service) ConfirmFromWebhook(ctx context.Context, body []byte, signature string) (ConfirmResult, error) {
	const op = "billing.ConfirmFromWebhook"
	log := s.log.With(sl.Op(op))

	if !s.provider.VerifyWebhookSignature(body, signature) {
		s.record(SourceWebhook, 0, ErrInvalidSignature)
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	payload, err := decodeWebhook(body)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if payload.Event != EventOrderPaid && payload.Event != EventPaymentCaptured {
		log.Debug("ignoring webhook event", slog.String("event", payload.Event))
		return 0, fmt.Errorf("%s: %w: %s", op, ErrIgnoredEvent, payload.Event)
	}
	orderID := payload.OrderID()
	if orderID == "" {
		return 0, fmt.Errorf("%s: %w: missing order id", op, ErrInvalidPayload)
	}
	log = log.With(slog.String("order_id", orderID), slog.String("event", payload.Event))

	order, res, err := s.lookup(ctx, orderID)
	if err != nil || res != 0 {
		s.record(SourceWebhook, res, err)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("confirmation short-circuited", slog.String("result", res.String()))
		return res, nil
	}

	if paid := webhookPaidAmount(payload); paid < order.Amount {
		s.record(SourceWebhook, 0, ErrNotSettled)
		log.Warn("webhook amount below order amount", slog.Int64("paid", paid), slog.Int64("amount", order.Amount))
		return 0, fmt.Errorf("%s: %w: paid %d of %d", op, ErrNotSettled, paid, order.Amount)
	}

	res, err = s.markPaid(ctx, orderID, SourceWebhook)
	s.record(SourceWebhook, res, err)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ListOrders заказы пользователя, новые первыми.
func (s *Service) ListOrders(ctx context.Context, username string) ([]*models.Order, error) {
	const op = "billing.ListOrders"
	orders, err := s.repo.ListOrders(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// GetOrder возвращает заказ по идентификатору провайдера.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	const op = "billing.GetOrder"
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

// ReportAbandoned находит заказы, которые дольше olderThan остаются в created
// и ещё не попадали в отчёт, и сообщает о них в лог и шину событий.
// Каждый заказ попадает в отчёт один раз. Статус заказов не меняется.
func (s *Service) ReportAbandoned(ctx context.Context, olderThan time.Duration) ([]*models.Order, error) {
	const op = "billing.ReportAbandoned"
	log := s.log.With(sl.Op(op))

	orders, err := s.repo.ClaimAbandonedOrders(ctx, olderThan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, o := range orders {
		log.Warn("order abandoned",
			slog.String("order_id", o.OrderID),
			slog.String("username", o.Username),
			slog.Time("created_at", o.CreatedAt),
		)
		s.publish(ctx, rabbitmq.RoutingOrderAbandoned, newOrderEvent(rabbitmq.RoutingOrderAbandoned, o, ""))
	}
	metrics.OrdersAbandonedTotal.Add(float64(len(orders)))
	return orders, nil
}

func (s *Service) lookup(ctx context.Context, orderID string) (*models.Order, ConfirmResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, NotFound, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if order.IsPaid() {
		return order, AlreadyConfirmed, nil
	}
	return order, 0, nil
}

func (s *Service) verify(ctx context.Context, order *models.Order, req ConfirmRequest) error {
	if req.Signature != "" {
		if req.PaymentID == "" || !s.provider.VerifyPaymentSignature(order.OrderID, req.PaymentID, req.Signature) {
			return ErrInvalidSignature
		}
		return nil
	}

	po, err := s.provider.FetchOrder(ctx, order.OrderID)
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("payment").Inc()
		return fmt.Errorf("%w: %w", ErrExternalService, err)
	}
	if po.Status != paymentprovider.OrderStatusPaid {
		return fmt.Errorf("%w: provider status %q", ErrNotSettled, po.Status)
	}
	if po.AmountPaid < order.Amount {
		return fmt.Errorf("%w: paid %d of %d", ErrNotSettled, po.AmountPaid, order.Amount)
	}
	return nil
}

func (s *Service) markPaid(ctx context.Context, orderID, source string) (ConfirmResult, error) {
	res, order, err := s.repo.MarkOrderPaid(ctx, orderID)
	if err != nil {
		return 0, err
	}
	switch res {
	case storage.PaidNotFound:
		return NotFound, nil
	case storage.PaidAlready:
		return AlreadyConfirmed, nil
	}

	s.log.Info("order paid",
		slog.String("order_id", order.OrderID),
		slog.String("username", order.Username),
		slog.String("source", source),
	)
	s.publish(ctx, rabbitmq.RoutingOrderPaid, newOrderEvent(rabbitmq.RoutingOrderPaid, order, source))
	return Confirmed, nil
}

func (s *Service) publish(ctx context.Context, routingKey string, event OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		s.log.Error("failed to publish order event",
			slog.String("routing_key", routingKey),
			slog.String("order_id", event.OrderID),
			sl.Err(err),
		)
	}
}

func (s *Service) record(source string, res ConfirmResult, err error) {
	var label string
	switch {
	case err == nil:
		label = res.String()
	case errors.Is(err, ErrNotSettled):
		label = "not_settled"
	case errors.Is(err, ErrInvalidSignature):
		label = "invalid_signature"
	default:
		label = "error"
	}
	metrics.OrderConfirmationsTotal.WithLabelValues(source, label).Inc()
}

func newOrderEvent(event string, o *models.Order, source string) OrderEvent {
	return OrderEvent{
		Event:     event,
		OrderID:   o.OrderID,
		Username:  o.Username,
		Amount:    o.Amount,
		Currency:  o.Currency,
		Status:    o.Status,
		Source:    source,
		CreatedAt: o.CreatedAt,
		PaidAt:    o.PaidAt,
	}
}
