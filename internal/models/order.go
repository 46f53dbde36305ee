package models

import "time"

const (
	// OrderStatusCreated заказ создан и ждёт оплаты.
	OrderStatusCreated = "created"
	// OrderStatusPaid оплата подтверждена.
	OrderStatusPaid = "paid"
)

// Order одна попытка оплаты. OrderID выдаёт платёжный провайдер,
// он же связывает callback провайдера с записью в базе.
type Order struct {
	ID        int        `json:"id"`
	Username  string     `json:"username"`
	OrderID   string     `json:"order_id"`
	Amount    int64      `json:"amount"` // в минимальных единицах валюты (пайсы)
	Currency  string     `json:"currency"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// IsPaid сообщает, подтверждена ли оплата заказа.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

// OrderHandle то, что получает фронтенд для открытия страницы оплаты.
type OrderHandle struct {
	OrderID  string       `json:"order_id"`
	Amount   int64        `json:"amount"`
	Currency string       `json:"currency"`
	Status   string       `json:"status"`
	Checkout CheckoutInfo `json:"checkout"`
}

// CheckoutInfo параметры виджета оплаты провайдера.
type CheckoutInfo struct {
	KeyID       string          `json:"key"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CallbackURL string          `json:"callback_url"`
	Prefill     CheckoutPrefill `json:"prefill"`
}

// CheckoutPrefill данные плательщика, которыми виджет заполняет форму.
type CheckoutPrefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
