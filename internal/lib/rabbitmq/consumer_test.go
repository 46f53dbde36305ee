package rabbitmq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestConsumerMessage_AcksAndRequeues(t *testing.T) {
	amqpURI := setupRabbitMQ(t)

	publisher, err := DialPublisher(amqpURI, 5, time.Second)
	require.NoError(t, err)
	defer publisher.Close()

	conn, err := Connect(amqpURI, 5, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32
	got := make(chan string, 1)
	done, err := ConsumerMessage(ctx, newNoopLogger(), ch, "billing.order.paid", func(_ context.Context, body []byte) error {
		if attempts.Add(1) == 1 {
			return errors.New("temporary failure")
		}
		got <- string(body)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(ctx, RoutingOrderPaid, map[string]string{"order_id": "order_1"}))

	select {
	case body := <-got:
		assert.Contains(t, body, "order_1")
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for redelivery")
	}
	assert.Equal(t, int32(2), attempts.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerMessage_UnknownQueue(t *testing.T) {
	amqpURI := setupRabbitMQ(t)

	conn, err := Connect(amqpURI, 5, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)

	_, err = ConsumerMessage(context.Background(), newNoopLogger(), ch, "no.such.queue", func(context.Context, []byte) error { return nil })
	assert.Error(t, err)
}

func TestConsumerMessage_PrefetchLimitsDeliveries(t *testing.T) {
	amqpURI := setupRabbitMQ(t)

	publisher, err := DialPublisher(amqpURI, 5, time.Second)
	require.NoError(t, err)
	defer publisher.Close()

	conn, err := Connect(amqpURI, 5, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := SetupChannel(conn, BillingExchange, GetBillingQueues())
	require.NoError(t, err)
	defer ch.Close()
	inspect, err := conn.Channel()
	require.NoError(t, err)
	defer inspect.Close()

	const published = maxInFlight * 3
	for i := range published {
		require.NoError(t, publisher.Publish(context.Background(), RoutingOrderAbandoned, map[string]int{"n": i}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	var started atomic.Int32
	done, err := ConsumerMessage(ctx, newNoopLogger(), ch, QueueOrderAbandoned, func(context.Context, []byte) error {
		started.Add(1)
		<-release
		return nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return started.Load() == maxInFlight }, 10*time.Second, 50*time.Millisecond)

	// Неподтверждённые доставки не выходят за предел, остальное ждёт в очереди.
	require.Eventually(t, func() bool {
		q, err := inspect.QueueInspect(QueueOrderAbandoned)
		return err == nil && q.Messages == published-maxInFlight
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(maxInFlight), started.Load())

	close(release)
	require.Eventually(t, func() bool { return started.Load() == published }, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
