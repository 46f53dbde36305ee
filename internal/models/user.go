// Package models содержит доменные модели сервиса: пользователя,
// сообщение переписки и платёжный заказ.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

const (
	// PlanFree тариф по умолчанию.
	PlanFree = "free"
	// PlanPro тариф после подтверждённой оплаты.
	PlanPro = "pro"
)

// User представляет пользователя, прошедшего аутентификацию хотя бы один раз.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"` // Имя пользователя (уникальное)
	Email     string    `json:"email"`    // Электронная почта (уникальная)
	Plan      string    `json:"plan"`     // free или pro
	CreatedAt time.Time `json:"created_at"`
}
