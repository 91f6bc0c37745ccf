package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain collectors for the ordering and stock engine. Label sets are fixed
// and small; ingredient and table IDs are never used as labels.
var (
	// OrdersSent counts orders written, by source (cart|direct).
	OrdersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_sent_total",
			Help: "Total number of orders sent to the kitchen.",
		},
		[]string{"source"},
	)

	// RodizioCapRejections counts add-to-cart calls ignored because the
	// table's cart already held its round limit of rodízio units.
	RodizioCapRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rodizio_cap_rejections_total",
			Help: "Total number of rodizio units rejected by the round limit.",
		},
	)

	// StockDeductions counts deduction attempts by result
	// (applied|skipped|already_applied|failed).
	StockDeductions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_deductions_total",
			Help: "Total number of order stock deductions by result.",
		},
		[]string{"result"},
	)

	// ConsumptionEvents counts consumption events appended to the log.
	ConsumptionEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "consumption_events_total",
			Help: "Total number of consumption events written.",
		},
	)

	// IngredientClamped counts deductions that requested more than the stock
	// on hand and were clamped at zero.
	IngredientClamped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingredient_clamped_total",
			Help: "Total number of ingredient deductions clamped at zero.",
		},
	)
)

func init() {
	prometheus.MustRegister(OrdersSent, RodizioCapRejections, StockDeductions, ConsumptionEvents, IngredientClamped)
}
