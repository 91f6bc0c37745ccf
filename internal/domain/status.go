package domain

// SessionStatus is the lifecycle state of a TableSession.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// ItemStatus tracks a sent line item through the kitchen.
type ItemStatus string

const (
	ItemSent      ItemStatus = "sent"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemCompleted ItemStatus = "completed"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemSent:      {ItemPreparing},
	ItemPreparing: {ItemReady, ItemCompleted},
	ItemReady:     {ItemCompleted},
}

// ParseItemStatus returns the ItemStatus for s, or false if unknown.
func ParseItemStatus(s string) (ItemStatus, bool) {
	switch st := ItemStatus(s); st {
	case ItemSent, ItemPreparing, ItemReady, ItemCompleted:
		return st, true
	}
	return "", false
}

// CanTransition reports whether the kitchen may move an item from one status to another.
func (from ItemStatus) CanTransition(to ItemStatus) bool {
	for _, s := range itemTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderSource records which write path produced an order.
type OrderSource string

const (
	SourceCart   OrderSource = "cart"
	SourceDirect OrderSource = "direct"
)

// DeductionStatus tracks whether an order's stock deduction has been applied.
type DeductionStatus string

const (
	DeductionPending DeductionStatus = "pending"
	DeductionApplied DeductionStatus = "applied"
)

// EventDeduction is the only consumption event type written by the engine.
const EventDeduction = "deduction"
