package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(OrderConfirmationsTotal.WithLabelValues("webhook", "confirmed"))
	OrderConfirmationsTotal.WithLabelValues("webhook", "confirmed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(OrderConfirmationsTotal.WithLabelValues("webhook", "confirmed")))

	before = testutil.ToFloat64(OrdersAbandonedTotal)
	OrdersAbandonedTotal.Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(OrdersAbandonedTotal))
}

func TestCollectorsLint(t *testing.T) {
	ProviderErrorsTotal.WithLabelValues("payment")
	ChatTurnsTotal.WithLabelValues("logged")
	for _, c := range []prometheus.Collector{
		OrdersCreatedTotal,
		OrderConfirmationsTotal,
		OrdersAbandonedTotal,
		ProviderErrorsTotal,
		ChatTurnsTotal,
	} {
		problems, err := testutil.CollectAndLint(c)
		assert.NoError(t, err)
		assert.Empty(t, problems)
	}
}
