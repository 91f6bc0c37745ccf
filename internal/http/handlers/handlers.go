package handlers

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Fredcx/ezmenu/internal/analytics"
	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/services"
	"github.com/Fredcx/ezmenu/internal/stock"
)

//
// Service contracts (context-aware)
//

// LedgerService manages the ingredient stock ledger.
type LedgerService interface {
	List(ctx context.Context) ([]domain.Ingredient, error)
	ListLowStock(ctx context.Context) ([]domain.Ingredient, error)
	Get(ctx context.Context, id string) (*domain.Ingredient, error)
	Create(ctx context.Context, in services.IngredientInput) (*domain.Ingredient, error)
	Adjust(ctx context.Context, id string, delta decimal.Decimal) (*domain.Ingredient, error)
	SetQuantity(ctx context.Context, id string, value decimal.Decimal) (*domain.Ingredient, error)
	SetMinThreshold(ctx context.Context, id string, value decimal.Decimal) (*domain.Ingredient, error)
	SetDailyAverage(ctx context.Context, id string, value *decimal.Decimal) (*domain.Ingredient, error)
}

// RecipeService reads and replaces recipes.
type RecipeService interface {
	Get(ctx context.Context, itemID string) ([]services.Requirement, error)
	Replace(ctx context.Context, itemID string, reqs []services.Requirement) ([]services.Requirement, error)
}

// AvailabilityService classifies menu items against the ledger.
type AvailabilityService interface {
	Resolve(ctx context.Context, itemID string) (stock.Availability, error)
	ResolveAll(ctx context.Context) ([]services.ItemAvailability, error)
}

// SessionService drives table sessions, the shared cart and order sends.
type SessionService interface {
	Start(ctx context.Context, tableID string, clients, roundLimit int) (*domain.TableSession, bool, error)
	Snapshot(ctx context.Context, tableID string) (*services.Snapshot, error)
	AddToCart(ctx context.Context, tableID string, in services.AddInput) (*services.AddResult, error)
	UpdateQuantity(ctx context.Context, tableID string, key services.LineKey, qty int) (*domain.CartLine, error)
	RemoveFromCart(ctx context.Context, tableID string, key services.LineKey) error
	ClearCart(ctx context.Context, tableID string) error
	Send(ctx context.Context, tableID, clientID, idemKey string) (*services.SendResult, error)
	AddDirect(ctx context.Context, tableID string, items []services.DirectItem) (*domain.Order, error)
	Close(ctx context.Context, tableID string) (*domain.TableSession, error)
	ListOrders(ctx context.Context, tableID string) ([]domain.Order, error)
}

// KitchenService exposes the kitchen queue.
type KitchenService interface {
	ListItems(ctx context.Context, statuses []string) ([]domain.SentLineItem, error)
	UpdateStatus(ctx context.Context, itemID, status string) (*domain.SentLineItem, error)
}

// AnalyticsService builds consumption reports.
type AnalyticsService interface {
	Report(ctx context.Context, days int) (*analytics.Report, error)
}

// DeductionService re-runs stock deductions left pending.
type DeductionService interface {
	RetryPending(ctx context.Context, limit int) (int, error)
}

//
// Handler wiring
//

// Deps bundles the services the handlers depend on.
type Deps struct {
	Ledger       LedgerService
	Recipes      RecipeService
	Availability AvailabilityService
	Sessions     SessionService
	Kitchen      KitchenService
	Analytics    AnalyticsService
	Deductions   DeductionService
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	ledger    LedgerService
	recipes   RecipeService
	avail     AvailabilityService
	sessions  SessionService
	kitchen   KitchenService
	analytics AnalyticsService
	deduction DeductionService
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	return &Handlers{
		ledger:    d.Ledger,
		recipes:   d.Recipes,
		avail:     d.Availability,
		sessions:  d.Sessions,
		kitchen:   d.Kitchen,
		analytics: d.Analytics,
		deduction: d.Deductions,
	}
}
