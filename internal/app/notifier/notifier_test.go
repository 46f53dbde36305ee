package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsumer закрывает done, когда отменён ctx или вызван fail.
func fakeConsumer(ctx context.Context) (<-chan struct{}, func()) {
	done := make(chan struct{})
	failed := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
		case <-failed:
		}
	}()
	return done, func() { close(failed) }
}

func runSupervise(ctx context.Context, stop context.CancelFunc, consumers map[string]<-chan struct{}) <-chan error {
	result := make(chan error, 1)
	go func() { result <- supervise(ctx, stop, consumers) }()
	return result
}

func TestSupervise_ConsumerStopReturnsError(t *testing.T) {
	ctx := context.Background()
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()

	paid, failPaid := fakeConsumer(consumeCtx)
	abandoned, _ := fakeConsumer(consumeCtx)
	result := runSupervise(ctx, stop, map[string]<-chan struct{}{
		"billing.order.paid":      paid,
		"billing.order.abandoned": abandoned,
	})

	failPaid()

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrConsumerStopped)
		assert.Contains(t, err.Error(), "billing.order.paid")
	case <-time.After(2 * time.Second):
		t.Fatal("supervise kept waiting after a consumer stopped")
	}

	select {
	case <-abandoned:
	default:
		t.Fatal("remaining consumer was not stopped")
	}
}

func TestSupervise_ContextCancelIsClean(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()

	paid, _ := fakeConsumer(consumeCtx)
	abandoned, _ := fakeConsumer(consumeCtx)
	result := runSupervise(ctx, stop, map[string]<-chan struct{}{
		"billing.order.paid":      paid,
		"billing.order.abandoned": abandoned,
	})

	cancel()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervise did not return after cancel")
	}
}
