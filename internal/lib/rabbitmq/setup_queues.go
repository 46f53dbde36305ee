package rabbitmq

// BillingExchange обменник для событий жизненного цикла заказов.
const BillingExchange = "billing"

// Ключи маршрутизации событий биллинга.
const (
	RoutingOrderPaid      = "order.paid"
	RoutingOrderAbandoned = "order.abandoned"
)

// Очереди событий биллинга.
const (
	QueueOrderPaid      = "billing.order.paid"
	QueueOrderAbandoned = "billing.order.abandoned"
)

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetBillingQueues очереди, которые получают события биллинга.
func GetBillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueOrderPaid, RoutingKey: RoutingOrderPaid},
		{QueueName: QueueOrderAbandoned, RoutingKey: RoutingOrderAbandoned},
	}
}
