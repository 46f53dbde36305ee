package models

import "time"

const (
	// RoleUser реплика пользователя.
	RoleUser = "user"
	// RoleAssistant ответ ассистента.
	RoleAssistant = "assistant"
)

// Message одна реплика переписки. После создания не изменяется.
type Message struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidRole сообщает, допустима ли роль сообщения.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// ChatTurn реплика в истории сессии, в формате чат-модели.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
