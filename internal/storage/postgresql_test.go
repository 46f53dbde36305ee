package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

func TestStorage_Initialize_Idempotent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	require.NoError(t, storage.Initialize(context.Background()))
	require.NoError(t, storage.Initialize(context.Background()))
}

func TestStorage_EnsureUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	u, err := storage.EnsureUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, models.PlanFree, u.Plan)
	assert.False(t, u.CreatedAt.IsZero())

	again, err := storage.EnsureUser(ctx, "alice", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	_, err = storage.EnsureUser(ctx, "mallory", "alice@example.com")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = storage.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_AppendAndListMessages(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, storage.AppendMessage(ctx, "alice", models.RoleUser, "hi"))
	require.NoError(t, storage.AppendMessage(ctx, "alice", models.RoleAssistant, "hello"))

	msgs, err := storage.ListMessages(ctx, "alice", 100)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.False(t, msgs[1].CreatedAt.Before(msgs[0].CreatedAt))

	err = storage.AppendMessage(ctx, "alice", "system", "nope")
	assert.ErrorIs(t, err, ErrInvalidRole)

	last, err := storage.ListMessages(ctx, "alice", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "hello", last[0].Content)
}

func TestStorage_ConcurrentAppendsDoNotMix(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	const turns = 20
	var wg sync.WaitGroup
	for _, username := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(username string) {
			defer wg.Done()
			for i := range turns {
				assert.NoError(t, storage.AppendMessage(ctx, username, models.RoleUser, fmt.Sprintf("%s-%d", username, i)))
			}
		}(username)
	}
	wg.Wait()

	for _, username := range []string{"alice", "bob"} {
		msgs, err := storage.ListMessages(ctx, username, 1000)
		require.NoError(t, err)
		require.Len(t, msgs, turns)
		for i, m := range msgs {
			assert.Equal(t, username, m.Username)
			assert.Equal(t, fmt.Sprintf("%s-%d", username, i), m.Content)
		}
	}
}

func TestStorage_OrderLifecycle(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	verification := NewTestVerification(storage)

	_, err := storage.EnsureUser(ctx, "bob", "bob@example.com")
	require.NoError(t, err)

	require.NoError(t, storage.CreateOrder(ctx, "bob", "order_123", 19900, "INR"))
	assert.Equal(t, 1, verification.CountOrders(t))

	o, err := storage.GetOrder(ctx, "order_123")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCreated, o.Status)
	assert.Equal(t, int64(19900), o.Amount)
	assert.Equal(t, "INR", o.Currency)
	assert.Nil(t, o.PaidAt)

	err = storage.CreateOrder(ctx, "bob", "order_123", 19900, "INR")
	assert.ErrorIs(t, err, ErrDuplicateKey)

	res, paid, err := storage.MarkOrderPaid(ctx, "order_123")
	require.NoError(t, err)
	assert.Equal(t, PaidConfirmed, res)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	verification.VerifyUserPlan(t, "bob", models.PlanPro)

	stored, err := storage.GetOrder(ctx, "order_123")
	require.NoError(t, err)
	require.NotNil(t, stored.PaidAt)
	firstPaidAt := *stored.PaidAt

	res, again, err := storage.MarkOrderPaid(ctx, "order_123")
	require.NoError(t, err)
	assert.Equal(t, PaidAlready, res)
	require.NotNil(t, again.PaidAt)
	assert.True(t, firstPaidAt.Equal(*again.PaidAt), "paid_at must not change on second call")

	res, missing, err := storage.MarkOrderPaid(ctx, "order_999")
	require.NoError(t, err)
	assert.Equal(t, PaidNotFound, res)
	assert.Nil(t, missing)
	assert.Equal(t, 1, verification.CountOrders(t))

	_, err = storage.GetOrder(ctx, "order_999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_MarkOrderPaid_Concurrent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, storage.CreateOrder(ctx, "carol", "order_race", 19900, "INR"))

	const callers = 5
	results := make(chan PaidResult, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := storage.MarkOrderPaid(ctx, "order_race")
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	confirmed := 0
	for res := range results {
		if res == PaidConfirmed {
			confirmed++
		} else {
			assert.Equal(t, PaidAlready, res)
		}
	}
	assert.Equal(t, 1, confirmed)
}

func TestStorage_ListOrdersAndClaimAbandoned(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	verification := NewTestVerification(storage)

	require.NoError(t, storage.CreateOrder(ctx, "dave", "order_old", 19900, "INR"))
	require.NoError(t, storage.CreateOrder(ctx, "dave", "order_new", 19900, "INR"))
	require.NoError(t, storage.CreateOrder(ctx, "erin", "order_paid", 19900, "INR"))
	verification.AgeOrder(t, "order_old", 48*time.Hour)
	verification.AgeOrder(t, "order_paid", 48*time.Hour)
	_, _, err := storage.MarkOrderPaid(ctx, "order_paid")
	require.NoError(t, err)

	orders, err := storage.ListOrders(ctx, "dave")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "order_new", orders[0].OrderID)

	claimed, err := storage.ClaimAbandonedOrders(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "order_old", claimed[0].OrderID)
	assert.Equal(t, models.OrderStatusCreated, claimed[0].Status)

	again, err := storage.ClaimAbandonedOrders(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, again, "an order is reported only once")

	stillCreated, err := storage.GetOrder(ctx, "order_old")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCreated, stillCreated.Status)

	verification.AgeOrder(t, "order_new", 48*time.Hour)
	later, err := storage.ClaimAbandonedOrders(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, "order_new", later[0].OrderID)
}

func TestStorage_ClaimAbandonedOrders_Concurrent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	verification := NewTestVerification(storage)

	for i := range 5 {
		orderID := fmt.Sprintf("order_stale_%d", i)
		require.NoError(t, storage.CreateOrder(ctx, "frank", orderID, 19900, "INR"))
		verification.AgeOrder(t, orderID, 48*time.Hour)
	}

	const callers = 4
	counts := make(chan int, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := storage.ClaimAbandonedOrders(ctx, 24*time.Hour)
			assert.NoError(t, err)
			counts <- len(claimed)
		}()
	}
	wg.Wait()
	close(counts)

	total := 0
	for n := range counts {
		total += n
	}
	assert.Equal(t, 5, total)
}

func TestStorage_CanceledContext(t *testing.T) {
	storage := &Storage{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := storage.AppendMessage(ctx, "alice", models.RoleUser, "hi")
	assert.ErrorIs(t, err, context.Canceled)

	err = storage.CreateOrder(ctx, "alice", "order_1", 100, "INR")
	assert.ErrorIs(t, err, context.Canceled)

	_, _, err = storage.MarkOrderPaid(ctx, "order_1")
	assert.ErrorIs(t, err, context.Canceled)
}
