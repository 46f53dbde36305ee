package paymentprovider

// CreateOrderRequest запрос на создание заказа у провайдера.
type CreateOrderRequest struct {
	Amount         int64             `json:"amount"`   // в минимальных единицах валюты
	Currency       string            `json:"currency"` // например "INR"
	Receipt        string            `json:"receipt,omitempty"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// Order заказ провайдера. Status: created, attempted, paid.
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`
}

const (
	// OrderStatusPaid заказ полностью оплачен у провайдера.
	OrderStatusPaid = "paid"
)

// APIError тело ошибки провайдера.
type APIError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// WebhookPayload тело webhook-уведомления провайдера.
type WebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID       string `json:"id"`
				OrderID  string `json:"order_id"`
				Status   string `json:"status"`
				Amount   int64  `json:"amount"`
				Currency string `json:"currency"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity Order `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// OrderID возвращает идентификатор заказа из события.
func (p *WebhookPayload) OrderID() string {
	if p.Payload.Order.Entity.ID != "" {
		return p.Payload.Order.Entity.ID
	}
	return p.Payload.Payment.Entity.OrderID
}
