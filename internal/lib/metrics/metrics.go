// Package metrics счётчики Prometheus сервиса. Регистрируются в
// реестре по умолчанию при импорте пакета и отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "assistant"

// OrdersCreatedTotal заказы, созданные у провайдера и сохранённые в базе.
var OrdersCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Total number of upgrade orders created.",
	},
)

// OrderConfirmationsTotal попытки подтверждения оплаты.
// Метка result: confirmed, already_confirmed, not_found, not_settled, invalid_signature, error.
var OrderConfirmationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_confirmations_total",
		Help:      "Total number of order confirmation attempts, by result.",
	},
	[]string{"source", "result"},
)

// OrdersAbandonedTotal заказы, попавшие в отчёт о брошенных.
var OrdersAbandonedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_abandoned_reported_total",
		Help:      "Total number of orders reported as abandoned.",
	},
)

// ProviderErrorsTotal ошибки внешних сервисов.
// Метка provider: payment или assistant.
var ProviderErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_errors_total",
		Help:      "Total number of failed calls to external providers.",
	},
	[]string{"provider"},
)

// ChatTurnsTotal записанные обмены репликами.
// Метка result: logged или partial (сохранена только реплика пользователя).
var ChatTurnsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_turns_total",
		Help:      "Total number of chat turns written to the store, by result.",
	},
	[]string{"result"},
)
