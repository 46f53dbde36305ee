// Package assistant пересылает реплики пользователя в чат-модель
// с OpenAI-совместимым API и возвращает ответ.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

// SystemPrompt задаёт поведение ассистента.
const SystemPrompt = "You are a helpful AI assistant. Keep answers concise and clear."

// ErrExternalService модель недоступна или вернула ошибку.
var ErrExternalService = errors.New("assistant provider unavailable")

// Options настройки клиента.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client клиент chat completions.
type Client struct {
	opts       Options
	httpClient *http.Client
}

// NewClient создаёт клиент.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Reply отправляет системную подсказку, историю сессии и новую реплику
// и возвращает текст ответа.
func (c *Client) Reply(ctx context.Context, history []models.ChatTurn, prompt string) (string, error) {
	const op = "assistant.Reply"

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: SystemPrompt})
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: models.RoleUser, Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrExternalService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrExternalService, err)
	}

	var out chatResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("%s: %w: %s: %s", op, ErrExternalService, resp.Status, out.Error.Message)
		}
		return "", fmt.Errorf("%s: %w: unexpected status: %s", op, ErrExternalService, resp.Status)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%s: %w: decode response: %w", op, ErrExternalService, decodeErr)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: empty choices", op, ErrExternalService)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
