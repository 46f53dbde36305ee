package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

// PaidResult итог попытки отметить заказ оплаченным.
type PaidResult int

const (
	// PaidNotFound заказа с таким order_id нет; ничего не создано.
	PaidNotFound PaidResult = iota
	// PaidConfirmed заказ переведён в paid этим вызовом.
	PaidConfirmed
	// PaidAlready заказ уже был оплачен; paid_at не менялся.
	PaidAlready
)

func (r PaidResult) String() string {
	switch r {
	case PaidConfirmed:
		return "confirmed"
	case PaidAlready:
		return "already_confirmed"
	default:
		return "not_found"
	}
}

const orderColumns = `id, username, order_id, amount, currency, status, created_at, paid_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var paidAt sql.NullTime
	if err := row.Scan(&o.ID, &o.Username, &o.OrderID, &o.Amount, &o.Currency,
		&o.Status, &o.CreatedAt, &paidAt); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	return &o, nil
}

// CreateOrder сохраняет заказ в статусе created.
// Повторный order_id возвращает ErrDuplicateKey.
func (s *Storage) CreateOrder(ctx context.Context, username, orderID string, amount int64, currency string) error {
	const op = "storage.CreateOrder"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO orders (username, order_id, amount, currency, status)
			  VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.DB.ExecContext(ctx, query,
		username, orderID, amount, currency, models.OrderStatusCreated); err != nil {
		return wrap(op, err)
	}
	return nil
}

// GetOrder возвращает заказ по идентификатору провайдера.
func (s *Storage) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	const op = "storage.GetOrder"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	o, err := scanOrder(s.DB.QueryRowContext(ctx, query, orderID))
	if err != nil {
		return nil, wrap(op, err)
	}
	return o, nil
}

// ListOrders возвращает заказы пользователя, новые первыми.
func (s *Storage) ListOrders(ctx context.Context, username string) ([]*models.Order, error) {
	const op = "storage.ListOrders"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + orderColumns + `
			  FROM orders
			  WHERE username = $1
			  ORDER BY created_at DESC, id DESC`
	return s.queryOrders(ctx, op, query, username)
}

// ClaimAbandonedOrders отмечает заказы, которые дольше olderThan остаются
// в статусе created и ещё не попадали в отчёт, и возвращает их, старые первыми.
// Отмеченный заказ больше не возвращается, даже если остался в created.
func (s *Storage) ClaimAbandonedOrders(ctx context.Context, olderThan time.Duration) ([]*models.Order, error) {
	const op = "storage.ClaimAbandonedOrders"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `WITH claimed AS (
				  UPDATE orders
				  SET abandoned_reported_at = NOW()
				  WHERE status = $1
				    AND created_at < $2
				    AND abandoned_reported_at IS NULL
				  RETURNING ` + orderColumns + `
			  )
			  SELECT ` + orderColumns + ` FROM claimed
			  ORDER BY created_at, id`
	return s.queryOrders(ctx, op, query, models.OrderStatusCreated, time.Now().Add(-olderThan))
}

func (s *Storage) queryOrders(ctx context.Context, op, query string, args ...any) ([]*models.Order, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// MarkOrderPaid в одной транзакции переводит заказ в paid, ставит paid_at
// и переводит владельца на тариф pro. Неизвестный order_id не является ошибкой,
// результат PaidNotFound. Уже оплаченный заказ не меняется.
func (s *Storage) MarkOrderPaid(ctx context.Context, orderID string) (PaidResult, *models.Order, error) {
	const op = "storage.MarkOrderPaid"
	select {
	case <-ctx.Done():
		return PaidNotFound, nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return PaidNotFound, nil, wrap(op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return PaidNotFound, nil, nil
	}
	if err != nil {
		return PaidNotFound, nil, wrap(op, err)
	}
	if order.IsPaid() {
		return PaidAlready, order, nil
	}

	var paidAt time.Time
	if err := tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, paid_at = NOW() WHERE id = $2 RETURNING paid_at`,
		models.OrderStatusPaid, order.ID).Scan(&paidAt); err != nil {
		return PaidNotFound, nil, wrap(op, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET plan = $1 WHERE username = $2`,
		models.PlanPro, order.Username); err != nil {
		return PaidNotFound, nil, wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return PaidNotFound, nil, wrap(op, err)
	}

	order.Status = models.OrderStatusPaid
	order.PaidAt = &paidAt
	return PaidConfirmed, order, nil
}
