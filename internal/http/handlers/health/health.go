// Package health реализует проверку живости сервиса и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
)

const checkTimeout = 2 * time.Second

// Pinger зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Data статус каждой зависимости.
type Data struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Handler обрабатывает GET /health.
type Handler struct {
	log     *slog.Logger
	pingers map[string]Pinger
}

// New создаёт Handler. Ключ карты попадает в ответ как имя проверки.
func New(log *slog.Logger, pingers map[string]Pinger) *Handler {
	return &Handler{log: log, pingers: pingers}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	data := Data{Status: "ok", Checks: make(map[string]string, len(h.pingers))}
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.log.Warn("health check failed", slog.String("check", name), sl.Err(err))
			data.Checks[name] = "down"
			data.Status = "degraded"
			continue
		}
		data.Checks[name] = "ok"
	}

	if data.Status != "ok" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, data)
}
