package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// CountOrders возвращает число заказов в базе
func (v *TestVerification) CountOrders(t *testing.T) int {
	var count int
	err := v.storage.DB.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count)
	require.NoError(t, err)
	return count
}

// VerifyUserPlan проверяет тариф пользователя
func (v *TestVerification) VerifyUserPlan(t *testing.T, username, expectedPlan string) {
	var plan string
	err := v.storage.DB.QueryRow("SELECT plan FROM users WHERE username = $1", username).Scan(&plan)
	require.NoError(t, err)
	require.Equal(t, expectedPlan, plan)
}

// AgeOrder сдвигает created_at заказа в прошлое
func (v *TestVerification) AgeOrder(t *testing.T, orderID string, age time.Duration) {
	_, err := v.storage.DB.Exec("UPDATE orders SET created_at = $1 WHERE order_id = $2",
		time.Now().Add(-age), orderID)
	require.NoError(t, err)
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL и применяет схему
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "Failed to create storage after retries")
	require.NoError(t, storage.Initialize(ctx), "Failed to create tables")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		_ = pgContainer.Terminate(ctx)
	}

	return storage, cleanup
}
