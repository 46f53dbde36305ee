// Package notifier содержит приложение, которое отправляет письма по событиям заказов из RabbitMQ.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/assistant-billing/internal/config"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/smtp"
	"github.com/magabrotheeeer/assistant-billing/internal/services/receipt"
	"github.com/magabrotheeeer/assistant-billing/internal/storage"
)

// ErrConsumerStopped потребитель очереди завершился без отмены контекста.
var ErrConsumerStopped = errors.New("queue consumer stopped")

// App приложение рассылки писем по событиям заказов.
type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	db      *storage.Storage
	receipt *receipt.Service
	logger  *slog.Logger
}

// New создаёт приложение. Без адреса RabbitMQ работать не может.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("notifier: rabbitmq url is not set")
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.BillingExchange, rabbitmq.GetBillingQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	return &App{
		conn:    conn,
		ch:      ch,
		db:      db,
		receipt: receipt.New(logger, db, transport),
		logger:  logger,
	}, nil
}

// Run читает очереди оплаченных и брошенных заказов до отмены ctx.
// Если любой потребитель остановился сам, например после обрыва соединения
// с брокером, Run останавливает остальных и возвращает ErrConsumerStopped.
func (a *App) Run(ctx context.Context) error {
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()

	handlers := map[string]rabbitmq.Handler{
		rabbitmq.QueueOrderPaid:      a.receipt.HandleOrderPaid,
		rabbitmq.QueueOrderAbandoned: a.receipt.HandleOrderAbandoned,
	}
	consumers := make(map[string]<-chan struct{}, len(handlers))
	for queue, handler := range handlers {
		done, err := rabbitmq.ConsumerMessage(consumeCtx, a.logger, a.ch, queue, handler)
		if err != nil {
			stop()
			for _, started := range consumers {
				<-started
			}
			a.closeResources()
			return err
		}
		consumers[queue] = done
		a.logger.Info("notifier consuming", slog.String("queue", queue))
	}

	err := supervise(ctx, stop, consumers)
	if err != nil {
		a.logger.Error("consumer stopped unexpectedly", sl.Err(err))
	} else {
		a.logger.Info("notifier shutting down gracefully")
	}
	a.closeResources()
	return err
}

// supervise ждёт отмены ctx или остановки любого из потребителей, затем
// останавливает остальных через stop и дожидается их завершения.
func supervise(ctx context.Context, stop context.CancelFunc, consumers map[string]<-chan struct{}) error {
	stopped := make(chan string, len(consumers))
	for queue, done := range consumers {
		go func() {
			<-done
			stopped <- queue
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case queue := <-stopped:
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %s", ErrConsumerStopped, queue)
		}
	}
	stop()
	for _, done := range consumers {
		<-done
	}
	return err
}

func (a *App) closeResources() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
