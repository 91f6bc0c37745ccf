// Package services – LedgerService
//
// LedgerService owns the ingredient stock ledger: creation with input
// normalization, administrative overrides (quantity, threshold, daily
// average), manual adjustments, and the clamped deductions applied on behalf
// of the DeductionService. Quantities never go below zero.
//
// Concurrency: in serialized mode every write to an ingredient holds an
// in-process per-ingredient lock (and a row lock on databases that support
// one) across its read-modify-write, so concurrent orders never lose
// updates. In best-effort mode writes are plain read-modify-write and the
// last writer wins.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/config"
	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/observability"
	"github.com/Fredcx/ezmenu/internal/repo"
	"github.com/Fredcx/ezmenu/internal/stock"
)

// IngredientInput is the administrative payload for a new ingredient.
type IngredientInput struct {
	ID           string
	Name         string
	Quantity     decimal.Decimal
	Unit         string
	MinThreshold decimal.Decimal
	Category     string
	DailyAverage *decimal.Decimal
}

// LedgerService coordinates reads and writes of the ingredient ledger.
type LedgerService struct {
	DB       *gorm.DB
	Mode     string // config.LedgerSerialized | config.LedgerBestEffort
	Notifier Notifier

	// Availability, when set, is used to attach the recomputed availability
	// of affected menu items to stock change notifications.
	Availability *AvailabilityService

	// Locale drives name casing and the collation of List.
	Locale language.Tag

	locks *keyedLocker
}

// NewLedgerService constructs a LedgerService. An empty mode means serialized.
func NewLedgerService(db *gorm.DB, mode string, n Notifier) *LedgerService {
	if mode == "" {
		mode = config.LedgerSerialized
	}
	return &LedgerService{
		DB:       db,
		Mode:     mode,
		Notifier: n,
		Locale:   language.BrazilianPortuguese,
		locks:    newKeyedLocker(),
	}
}

// StockChange is the payload of a stock.changed notification.
type StockChange struct {
	Ingredients []domain.Ingredient `json:"ingredients"`
	Items       []ItemAvailability  `json:"items,omitempty"`
}

func (s *LedgerService) tracer() trace.Tracer { return otel.Tracer("services/LedgerService") }

// lock serializes writers of the given ingredients. It is a no-op in
// best-effort mode.
func (s *LedgerService) lock(ids ...string) func() {
	if s.Mode == config.LedgerBestEffort || s.locks == nil {
		return func() {}
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "ingredient:" + id
	}
	return s.locks.Lock(keys...)
}

// Get returns one ingredient or ErrIngredientNotFound.
func (s *LedgerService) Get(ctx context.Context, id string) (*domain.Ingredient, error) {
	ctx, span := s.tracer().Start(ctx, "Get", trace.WithAttributes(attribute.String("ingredient.id", id)))
	defer span.End()

	ing, err := repo.GetIngredient(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrIngredientNotFound
	}
	return ing, err
}

// List returns the whole ledger ordered by name under the service locale's
// collation (accents and case do not split the ordering).
func (s *LedgerService) List(ctx context.Context) ([]domain.Ingredient, error) {
	ctx, span := s.tracer().Start(ctx, "List")
	defer span.End()

	items, err := repo.ListIngredients(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	coll := collate.New(s.Locale, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(items, func(i, j int) bool {
		if c := coll.CompareString(items[i].Name, items[j].Name); c != 0 {
			return c < 0
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Version returns the ledger row count and latest update time, enough to
// derive a cache validator for list responses.
func (s *LedgerService) Version(ctx context.Context) (int64, *time.Time, error) {
	return repo.IngredientsStats(ctx, s.DB)
}

// ListLowStock returns ingredients at or below their minimum threshold.
func (s *LedgerService) ListLowStock(ctx context.Context) ([]domain.Ingredient, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Ingredient, 0)
	for _, ing := range all {
		if ing.Quantity.LessThanOrEqual(ing.MinThreshold) {
			out = append(out, ing)
		}
	}
	return out, nil
}

// Create validates and inserts a new ingredient. Name and unit are
// normalized; an empty ID gets a generated UUID.
func (s *LedgerService) Create(ctx context.Context, in IngredientInput) (*domain.Ingredient, error) {
	ctx, span := s.tracer().Start(ctx, "Create")
	defer span.End()

	name := normalizeName(in.Name, s.Locale)
	if name == "" {
		return nil, validationf("name is required")
	}
	unit := cases.Lower(language.Und).String(strings.TrimSpace(in.Unit))
	if unit == "" {
		return nil, validationf("unit is required")
	}
	if in.Quantity.IsNegative() {
		return nil, validationf("quantity must be >= 0")
	}
	if in.MinThreshold.IsNegative() {
		return nil, validationf("min_threshold must be >= 0")
	}
	if in.DailyAverage != nil && in.DailyAverage.IsNegative() {
		return nil, validationf("daily_average must be >= 0")
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	ing := &domain.Ingredient{
		ID:           id,
		Name:         name,
		Quantity:     in.Quantity,
		Unit:         unit,
		MinThreshold: in.MinThreshold,
		Category:     strings.TrimSpace(in.Category),
	}
	if in.DailyAverage != nil {
		ing.DailyAverage = decimal.NewNullDecimal(*in.DailyAverage)
	}
	if err := repo.CreateIngredient(ctx, s.DB, ing); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrIngredientExists
		}
		return nil, err
	}
	s.notifyChange(ctx, []domain.Ingredient{*ing})
	return ing, nil
}

// Adjust applies quantity = max(0, quantity + delta).
func (s *LedgerService) Adjust(ctx context.Context, id string, delta decimal.Decimal) (*domain.Ingredient, error) {
	ctx, span := s.tracer().Start(ctx, "Adjust", trace.WithAttributes(
		attribute.String("ingredient.id", id),
		attribute.String("delta", delta.String()),
	))
	defer span.End()

	unlock := s.lock(id)
	defer unlock()

	var out domain.Ingredient
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.loadForWrite(ctx, tx, []string{id})
		if err != nil {
			return err
		}
		ing, ok := rows[id]
		if !ok {
			return ErrIngredientNotFound
		}
		next, clamped := stock.ApplyDelta(ing.Quantity, delta.Neg())
		if clamped {
			observability.IngredientClamped.Inc()
		}
		if err := repo.SetIngredientQuantity(ctx, tx, id, next); err != nil {
			return err
		}
		ing.Quantity = next
		out = ing
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyChange(ctx, []domain.Ingredient{out})
	return &out, nil
}

// SetQuantity overwrites the stock level.
func (s *LedgerService) SetQuantity(ctx context.Context, id string, value decimal.Decimal) (*domain.Ingredient, error) {
	if value.IsNegative() {
		return nil, validationf("quantity must be >= 0")
	}
	unlock := s.lock(id)
	defer unlock()
	return s.update(ctx, "SetQuantity", id, map[string]any{"quantity": value})
}

// SetMinThreshold overwrites the low-stock threshold.
func (s *LedgerService) SetMinThreshold(ctx context.Context, id string, value decimal.Decimal) (*domain.Ingredient, error) {
	if value.IsNegative() {
		return nil, validationf("min_threshold must be >= 0")
	}
	return s.update(ctx, "SetMinThreshold", id, map[string]any{"min_threshold": value})
}

// SetDailyAverage sets the expected daily consumption; nil clears it.
func (s *LedgerService) SetDailyAverage(ctx context.Context, id string, value *decimal.Decimal) (*domain.Ingredient, error) {
	avg := decimal.NullDecimal{}
	if value != nil {
		if value.IsNegative() {
			return nil, validationf("daily_average must be >= 0")
		}
		avg = decimal.NewNullDecimal(*value)
	}
	return s.update(ctx, "SetDailyAverage", id, map[string]any{"daily_average": avg})
}

func (s *LedgerService) update(ctx context.Context, op, id string, fields map[string]any) (*domain.Ingredient, error) {
	ctx, span := s.tracer().Start(ctx, op, trace.WithAttributes(attribute.String("ingredient.id", id)))
	defer span.End()

	if err := repo.UpdateIngredientFields(ctx, s.DB, id, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrIngredientNotFound
		}
		return nil, err
	}
	ing, err := repo.GetIngredient(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	s.notifyChange(ctx, []domain.Ingredient{*ing})
	return ing, nil
}

// deductResult reports what applyDeductions wrote.
type deductResult struct {
	Updated []domain.Ingredient
	Events  []domain.ConsumptionEvent
	Clamped int
}

// applyDeductions subtracts each delta from the ledger inside tx and builds
// one consumption event per ingredient carrying the requested amount.
// Callers must hold lockDeductions for the same ingredients. Unknown
// ingredients are logged and skipped.
func (s *LedgerService) applyDeductions(ctx context.Context, tx *gorm.DB, orderID string, deltas []stock.Delta, at time.Time) (deductResult, error) {
	var res deductResult
	ids := make([]string, len(deltas))
	for i, d := range deltas {
		ids[i] = d.IngredientID
	}
	rows, err := s.loadForWrite(ctx, tx, ids)
	if err != nil {
		return res, err
	}
	for _, d := range deltas {
		ing, ok := rows[d.IngredientID]
		if !ok {
			log.Warn().
				Str("order_id", orderID).
				Str("ingredient_id", d.IngredientID).
				Msg("recipe references unknown ingredient; skipping deduction")
			continue
		}
		next, clamped := stock.ApplyDelta(ing.Quantity, d.Amount)
		if clamped {
			res.Clamped++
			log.Warn().
				Str("order_id", orderID).
				Str("ingredient_id", d.IngredientID).
				Str("on_hand", ing.Quantity.String()).
				Str("requested", d.Amount.String()).
				Msg("deduction exceeds stock; clamped at zero")
		}
		if err := repo.SetIngredientQuantity(ctx, tx, ing.ID, next); err != nil {
			return res, err
		}
		ing.Quantity = next
		res.Updated = append(res.Updated, ing)
		res.Events = append(res.Events, domain.ConsumptionEvent{
			ID:           uuid.NewString(),
			IngredientID: ing.ID,
			OrderID:      orderID,
			Amount:       d.Amount,
			Timestamp:    at,
			Type:         domain.EventDeduction,
		})
	}
	if err := repo.CreateConsumptionEvents(ctx, tx, res.Events); err != nil {
		return res, err
	}
	return res, nil
}

// loadForWrite reads the ingredients a write is about to change. Serialized
// mode also takes row locks where the database supports them; best effort
// reads plainly and the last write wins.
func (s *LedgerService) loadForWrite(ctx context.Context, tx *gorm.DB, ids []string) (map[string]domain.Ingredient, error) {
	if s.Mode == config.LedgerBestEffort {
		return repo.GetIngredientsByIDs(ctx, tx, ids)
	}
	return repo.LockIngredients(ctx, tx, ids)
}

// lockDeductions serializes a deduction against other writers of the same
// ingredients.
func (s *LedgerService) lockDeductions(deltas []stock.Delta) func() {
	ids := make([]string, len(deltas))
	for i, d := range deltas {
		ids[i] = d.IngredientID
	}
	return s.lock(ids...)
}

func (s *LedgerService) notifyChange(ctx context.Context, changed []domain.Ingredient) {
	if s.Notifier == nil || len(changed) == 0 {
		return
	}
	payload := StockChange{Ingredients: changed}
	if s.Availability != nil {
		ids := make([]string, len(changed))
		for i, ing := range changed {
			ids[i] = ing.ID
		}
		items, err := s.Availability.ResolveAffected(ctx, ids)
		if err != nil {
			log.Warn().Err(err).Msg("availability recompute for stock notification failed")
		} else {
			payload.Items = items
		}
	}
	publish(s.Notifier, StockTopic, EventStockChanged, payload)
}

// normalizeName trims, collapses inner whitespace and title-cases s.
func normalizeName(s string, tag language.Tag) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Title(tag, cases.NoLower).String(s)
}
