// Package send реализует HTTP-обработчик одного обмена репликами с ассистентом.
//
// Ответ модели запрашивается с историей текущей сессии, затем обе реплики
// записываются в базу и добавляются в историю сессии.
package send

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/assistant-billing/internal/assistant"
	"github.com/magabrotheeeer/assistant-billing/internal/http/response"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/metrics"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/models"
	"github.com/magabrotheeeer/assistant-billing/internal/session"
)

// Request реплика пользователя.
type Request struct {
	Prompt string `json:"prompt" validate:"required,max=8000"`
}

// Data ответ ассистента.
type Data struct {
	Reply string `json:"reply"`
}

// Assistant чат-модель.
type Assistant interface {
	Reply(ctx context.Context, history []models.ChatTurn, prompt string) (string, error)
}

// Conversation журнал переписки.
type Conversation interface {
	LogTurn(ctx context.Context, username, prompt, reply string) error
}

// Sessions сохраняет изменённую сессию.
type Sessions interface {
	Save(ctx context.Context, sess *session.Session) error
}

// Handler обрабатывает POST /chat.
type Handler struct {
	log          *slog.Logger
	assistant    Assistant
	conversation Conversation
	sessions     Sessions
	validate     *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, assistant Assistant, conversation Conversation, sessions Sessions) *Handler {
	return &Handler{
		log:          log,
		assistant:    assistant,
		conversation: conversation,
		sessions:     sessions,
		validate:     validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Реплика ассистенту
// @Tags Chat
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Реплика"
// @Success 200 {object} response.Response{data=Data}
// @Failure 422 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse "Модель недоступна"
// @Router /chat [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.send"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sess, ok := session.FromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("session missing"))
		return
	}
	log = log.With(slog.String("username", sess.Username))

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request"))
		return
	}

	reply, err := h.assistant.Reply(r.Context(), sess.History, req.Prompt)
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("assistant").Inc()
		log.Error("assistant failed", sl.Err(err))
		status := http.StatusInternalServerError
		if errors.Is(err, assistant.ErrExternalService) {
			status = http.StatusBadGateway
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error("assistant unavailable"))
		return
	}

	if err := h.conversation.LogTurn(r.Context(), sess.Username, req.Prompt, reply); err != nil {
		log.Error("failed to log turn", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to save conversation"))
		return
	}

	sess.AppendTurn(req.Prompt, reply)
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		log.Warn("failed to save session history", sl.Err(err))
	}

	render.JSON(w, r, response.OKWithData(Data{Reply: reply}))
}
