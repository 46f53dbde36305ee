// Package receipt отправляет пользователю письма по событиям заказа: квитанцию
// после подтверждённой оплаты и напоминание о брошенном заказе.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/lib/smtp"
	"github.com/magabrotheeeer/assistant-billing/internal/models"
	"github.com/magabrotheeeer/assistant-billing/internal/services/billing"
	"github.com/magabrotheeeer/assistant-billing/internal/storage"
)

// UserRepository источник адреса получателя.
type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Transport открывает SMTP-сессию.
type Transport interface {
	Connect() (smtp.Client, error)
	GetSMTPUser() string
}

// Service отправляет письма об оплате.
type Service struct {
	users     UserRepository
	transport Transport
	log       *slog.Logger
}

// New создаёт Service.
func New(log *slog.Logger, users UserRepository, transport Transport) *Service {
	return &Service{users: users, transport: transport, log: log}
}

// HandleOrderPaid обрабатывает событие order.paid из очереди.
//
// Нечитаемое событие и событие для неизвестного пользователя подтверждаются
// без письма: повтор их не исправит. Ошибка SMTP возвращается, и сообщение
// уходит обратно в очередь.
func (s *Service) HandleOrderPaid(ctx context.Context, body []byte) error {
	const op = "receipt.HandleOrderPaid"
	log := s.log.With(sl.Op(op))

	event, user, err := s.recipient(ctx, log, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return nil
	}

	subject := "Pro-тариф подключён"
	text := fmt.Sprintf("Здравствуйте, %s!\r\n\r\nОплата заказа %s на сумму %s %s подтверждена. Pro-тариф уже доступен.\r\n",
		user.Username, event.OrderID, formatAmount(event.Amount), event.Currency)

	if err := s.sendEmail(user.Email, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("receipt sent", slog.String("order_id", event.OrderID))
	return nil
}

// HandleOrderAbandoned обрабатывает событие order.abandoned: напоминает
// пользователю о неоплаченном заказе. Правила подтверждения те же, что у HandleOrderPaid.
func (s *Service) HandleOrderAbandoned(ctx context.Context, body []byte) error {
	const op = "receipt.HandleOrderAbandoned"
	log := s.log.With(sl.Op(op))

	event, user, err := s.recipient(ctx, log, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return nil
	}
	if user.Plan == models.PlanPro {
		log.Info("user already on pro, reminder skipped", slog.String("order_id", event.OrderID))
		return nil
	}

	subject := "Заказ Pro-тарифа ждёт оплаты"
	text := fmt.Sprintf("Здравствуйте, %s!\r\n\r\nЗаказ %s на сумму %s %s создан, но не оплачен. Чтобы подключить Pro-тариф, оформите оплату заново в приложении.\r\n",
		user.Username, event.OrderID, formatAmount(event.Amount), event.Currency)

	if err := s.sendEmail(user.Email, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("reminder sent", slog.String("order_id", event.OrderID))
	return nil
}

// recipient разбирает событие и находит получателя. Нулевой user без ошибки
// означает, что событие подтверждается без письма.
func (s *Service) recipient(ctx context.Context, log *slog.Logger, body []byte) (*billing.OrderEvent, *models.User, error) {
	var event billing.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("dropping malformed event", sl.Err(err))
		return nil, nil, nil
	}
	if event.OrderID == "" || event.Username == "" {
		log.Error("dropping incomplete event", slog.String("order_id", event.OrderID))
		return nil, nil, nil
	}

	user, err := s.users.GetUserByUsername(ctx, event.Username)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("dropping event for unknown user", slog.String("username", event.Username))
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if user.Email == "" {
		log.Info("user has no email, message skipped", slog.String("username", event.Username))
		return nil, nil, nil
	}
	return &event, user, nil
}

func (s *Service) sendEmail(to, subject, bodyText string) error {
	from := s.transport.GetSMTPUser()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

// formatAmount переводит минимальные единицы валюты в строку с двумя знаками.
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
