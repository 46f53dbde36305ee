// Package reconciler содержит приложение, которое периодически сообщает о брошенных заказах.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/assistant-billing/internal/config"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/paymentprovider"
	"github.com/magabrotheeeer/assistant-billing/internal/services/billing"
	reconcilerservice "github.com/magabrotheeeer/assistant-billing/internal/services/reconciler"
	"github.com/magabrotheeeer/assistant-billing/internal/storage"
)

// App представляет приложение сверки заказов.
type App struct {
	service *reconcilerservice.Service
	db      *storage.Storage
	events  *rabbitmq.Publisher
	logger  *slog.Logger
}

func waitForDB(ctx context.Context, db *storage.Storage) error {
	for range 10 {
		if err := db.Ping(ctx); err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создаёт приложение сверки.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := waitForDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{db: db, logger: logger}

	var publisher billing.Publisher
	if cfg.RabbitMQURL != "" {
		events, err := rabbitmq.DialPublisher(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		app.events = events
		publisher = events
	}

	provider := paymentprovider.NewClient(cfg.APIURL, cfg.KeyID, cfg.KeySecret, cfg.WebhookSecret)
	billingService := billing.New(logger, db, provider, publisher, billing.Settings{
		Price:    cfg.ProPrice,
		Currency: cfg.Currency,
		AppURL:   cfg.AppURL,
	})
	app.service = reconcilerservice.New(logger, billingService, cfg.Interval, cfg.AbandonedAfter)
	return app, nil
}

// Run запускает сверку и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.service.Run(ctx)
	a.logger.Info("shutting down reconciler")
	a.closeResources()
	return nil
}

func (a *App) closeResources() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq publisher", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
