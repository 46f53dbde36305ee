// Package paymentprovider реализует клиент платёжного провайдера Razorpay:
// создание и получение заказа, проверку подписей оплаты и webhook.
package paymentprovider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrProvider провайдер недоступен или отклонил запрос.
var ErrProvider = errors.New("payment provider error")

// Client клиент REST API провайдера.
type Client struct {
	keyID         string
	keySecret     string
	webhookSecret string
	apiURL        string
	httpClient    *http.Client
}

// NewClient создаёт новый клиент Razorpay
func NewClient(apiURL, keyID, keySecret, webhookSecret string) *Client {
	return &Client{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		apiURL:        apiURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// KeyID публичный ключ для виджета оплаты.
func (c *Client) KeyID() string {
	return c.keyID
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr APIError
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			return fmt.Errorf("%w: %s: %s", ErrProvider, resp.Status, apiErr.Error.Description)
		}
		return fmt.Errorf("%w: unexpected status: %s", ErrProvider, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrProvider, err)
	}
	return nil
}

// CreateOrder создаёт заказ на оплату у провайдера.
func (c *Client) CreateOrder(ctx context.Context, reqParams CreateOrderRequest) (*Order, error) {
	const op = "paymentprovider.CreateOrder"
	req, err := c.newRequest(ctx, http.MethodPost, "/orders", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var order Order
	if err := c.do(req, &order); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &order, nil
}

// FetchOrder получает текущее состояние заказа у провайдера.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	const op = "paymentprovider.FetchOrder"
	req, err := c.newRequest(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var order Order
	if err := c.do(req, &order); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &order, nil
}

// VerifyPaymentSignature проверяет подпись, пришедшую в callback после оплаты:
// hex(HMAC_SHA256(key_secret, order_id + "|" + payment_id)).
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return verifyHex(c.keySecret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature проверяет заголовок X-Razorpay-Signature по сырому телу.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" {
		return false
	}
	return verifyHex(c.webhookSecret, body, signature)
}

func verifyHex(secret string, payload []byte, signature string) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}

// Sign считает подпись так же, как провайдер. Нужен для тестов и локальной отладки.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
