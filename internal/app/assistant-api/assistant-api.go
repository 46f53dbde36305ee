package assistantapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/assistant-billing/internal/assistant"
	"github.com/magabrotheeeer/assistant-billing/internal/cache"
	"github.com/magabrotheeeer/assistant-billing/internal/config"
	"github.com/magabrotheeeer/assistant-billing/internal/http/handlers/health"
	"github.com/magabrotheeeer/assistant-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/assistant-billing/internal/services/auth"
	"github.com/magabrotheeeer/assistant-billing/internal/services/billing"
	"github.com/magabrotheeeer/assistant-billing/internal/services/conversation"
	"github.com/magabrotheeeer/assistant-billing/internal/session"
	"github.com/magabrotheeeer/assistant-billing/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-приложение ассистента.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	events *rabbitmq.Publisher
}

// New поднимает зависимости и собирает роутер. Пустой адрес RabbitMQ отключает публикацию событий.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "assistantapi.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.Initialize(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{logger: logger, db: db, cache: cacheRedis}

	var publisher billing.Publisher
	if cfg.RabbitMQURL != "" {
		events, err := rabbitmq.DialPublisher(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.events = events
		publisher = events
	} else {
		logger.Warn("rabbitmq url is empty, billing events are not published")
	}

	provider := paymentprovider.NewClient(cfg.APIURL, cfg.KeyID, cfg.KeySecret, cfg.WebhookSecret)
	billingService := billing.New(logger, db, provider, publisher, billing.Settings{
		Price:    cfg.ProPrice,
		Currency: cfg.Currency,
		AppURL:   cfg.AppURL,
	})

	sessions := session.NewStore(cacheRedis, cfg.SessionTTL)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Auth:         authservice.New(logger, cfg.Usernames, db, sessions, jwtMaker),
		Billing:      billingService,
		Conversation: conversation.New(logger, db),
		Assistant: assistant.NewClient(assistant.Options{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}),
		Sessions:    sessions,
		ChatLimiter: middlewarectx.NewUserLimiter(cfg.ChatRPS, cfg.ChatBurst),
		Health: map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		},
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.Timeout + cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.closeResources()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.closeResources()
		return err
	}
}

func (a *App) closeResources() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq publisher", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
