// Package stock holds the pure stock arithmetic shared by the ordering and
// ledger services: availability classification of menu items from their
// recipes, accumulation of per-ingredient deductions for an order, and the
// clamped application of a deduction to a ledger quantity.
//
// Nothing here touches the database; callers load recipes and ledger rows
// and pass them in through small lookup functions.
package stock

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Availability classifies whether a menu item can be served from current stock.
type Availability string

const (
	Available  Availability = "available"
	LowStock   Availability = "low_stock"
	OutOfStock Availability = "out_of_stock"
)

// Requirement is the amount of one ingredient consumed by a single unit of a
// menu item.
type Requirement struct {
	IngredientID string
	Amount       decimal.Decimal
}

// Level is the part of a ledger row availability depends on.
type Level struct {
	Quantity     decimal.Decimal
	MinThreshold decimal.Decimal
}

// LevelLookup returns the ledger level of an ingredient, or false when the
// ingredient is unknown.
type LevelLookup func(ingredientID string) (Level, bool)

// Resolve classifies a single unit of an item with the given recipe.
//
// Any requirement whose ingredient quantity is below the required amount
// makes the item out of stock; otherwise any ingredient at or below its
// threshold makes it low stock. An empty recipe is always available.
// Requirements on unknown ingredients are ignored.
func Resolve(reqs []Requirement, lookup LevelLookup) Availability {
	result := Available
	for _, r := range reqs {
		lvl, ok := lookup(r.IngredientID)
		if !ok {
			continue
		}
		if lvl.Quantity.LessThan(r.Amount) {
			return OutOfStock
		}
		if lvl.Quantity.LessThanOrEqual(lvl.MinThreshold) {
			result = LowStock
		}
	}
	return result
}

// Line is one submitted quantity of a menu item.
type Line struct {
	ItemID   string
	Quantity int
}

// RecipeLookup returns the recipe of a menu item; an empty slice means the
// item is untracked.
type RecipeLookup func(itemID string) []Requirement

// Delta is the combined amount of one ingredient consumed by an order.
type Delta struct {
	IngredientID string
	Amount       decimal.Decimal
}

// Accumulate sums amount × quantity per ingredient over all lines. Each
// ingredient appears at most once in the result, which is sorted by
// ingredient ID so callers lock rows in a stable order. Lines with a
// non-positive quantity or an untracked item contribute nothing.
func Accumulate(lines []Line, recipes RecipeLookup) []Delta {
	sums := make(map[string]decimal.Decimal)
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		q := decimal.NewFromInt(int64(l.Quantity))
		for _, r := range recipes(l.ItemID) {
			sums[r.IngredientID] = sums[r.IngredientID].Add(r.Amount.Mul(q))
		}
	}
	out := make([]Delta, 0, len(sums))
	for id, amt := range sums {
		if amt.Sign() <= 0 {
			continue
		}
		out = append(out, Delta{IngredientID: id, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out
}

// ApplyDelta subtracts amount from qty, clamping at zero. clamped reports
// whether the requested amount exceeded the stock on hand.
func ApplyDelta(qty, amount decimal.Decimal) (next decimal.Decimal, clamped bool) {
	next = qty.Sub(amount)
	if next.Sign() < 0 {
		return decimal.Zero, true
	}
	return next, false
}
