// Package reconciler периодически сообщает о заказах, которые так и не были оплачены.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/assistant-billing/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

// Reporter формирует отчёт о брошенных заказах.
type Reporter interface {
	ReportAbandoned(ctx context.Context, olderThan time.Duration) ([]*models.Order, error)
}

// Service запускает отчёт по таймеру.
type Service struct {
	reporter       Reporter
	interval       time.Duration
	abandonedAfter time.Duration
	log            *slog.Logger
}

// New создаёт Service. Заказ считается брошенным, если он старше abandonedAfter.
func New(log *slog.Logger, reporter Reporter, interval, abandonedAfter time.Duration) *Service {
	return &Service{
		reporter:       reporter,
		interval:       interval,
		abandonedAfter: abandonedAfter,
		log:            log,
	}
}

// Run выполняет отчёт сразу и затем каждые interval, пока не отменён ctx.
func (s *Service) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reconciler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один отчёт и возвращает число брошенных заказов.
func (s *Service) RunOnce(ctx context.Context) int {
	const op = "reconciler.RunOnce"
	log := s.log.With(sl.Op(op))

	orders, err := s.reporter.ReportAbandoned(ctx, s.abandonedAfter)
	if err != nil {
		log.Error("failed to report abandoned orders", sl.Err(err))
		return 0
	}
	if len(orders) == 0 {
		log.Info("no abandoned orders found")
		return 0
	}
	log.Info("found abandoned orders", slog.Int("count", len(orders)))
	return len(orders)
}
