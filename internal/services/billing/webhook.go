package billing

import (
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/assistant-billing/internal/paymentprovider"
)

func decodeWebhook(body []byte) (*paymentprovider.WebhookPayload, error) {
	var payload paymentprovider.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return &payload, nil
}

// webhookPaidAmount сумма, которую провайдер считает оплаченной.
func webhookPaidAmount(p *paymentprovider.WebhookPayload) int64 {
	if p.Event == EventOrderPaid && p.Payload.Order.Entity.AmountPaid > 0 {
		return p.Payload.Order.Entity.AmountPaid
	}
	return p.Payload.Payment.Entity.Amount
}
