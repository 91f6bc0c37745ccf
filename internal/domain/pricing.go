package domain

import "github.com/shopspring/decimal"

// PricingKind tags how a cart line is charged.
type PricingKind string

const (
	PricingRodizio  PricingKind = "rodizio"
	PricingAlacarte PricingKind = "alacarte"
)

// Pricing is resolved once when an item enters the cart and copied verbatim
// into the sent line item. Rodízio units always carry a zero price.
type Pricing struct {
	Kind  PricingKind     `json:"kind"`
	Price decimal.Decimal `json:"price"`
}

// IsRodizio reports whether the line counts toward the round limit.
func (p Pricing) IsRodizio() bool { return p.Kind == PricingRodizio }

// ResolvePricing decides how item is charged. A rodízio item ordered with
// forceAlacarte leaves the cap and is charged at list price; every other
// category is always à la carte.
func ResolvePricing(item MenuItem, forceAlacarte bool) Pricing {
	if item.Category.CountsTowardRound() && !forceAlacarte {
		return Pricing{Kind: PricingRodizio, Price: decimal.Zero}
	}
	return Pricing{Kind: PricingAlacarte, Price: item.Price}
}
