package services

// Notifier pushes change notifications to subscribers of a topic. Delivery
// is best effort and must not block the caller.
type Notifier interface {
	Publish(topic, event string, payload any)
}

// StockTopic carries ledger changes and the recomputed availability of the
// menu items they affect.
const StockTopic = "stock"

// TableTopic returns the topic carrying session, cart and order changes of
// one table.
func TableTopic(tableID string) string { return "table:" + tableID }

// Event names published on the topics above.
const (
	EventSessionStarted = "session.started"
	EventSessionClosed  = "session.closed"
	EventCartUpdated    = "cart.updated"
	EventOrderSent      = "order.sent"
	EventItemStatus     = "item.status"
	EventStockChanged   = "stock.changed"
)

func publish(n Notifier, topic, event string, payload any) {
	if n == nil {
		return
	}
	n.Publish(topic, event, payload)
}
