package services

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/repo"
	"github.com/Fredcx/ezmenu/internal/stock"
)

// ItemAvailability is the resolved state of one menu item.
type ItemAvailability struct {
	ItemID       string              `json:"item_id"`
	Name         string              `json:"name,omitempty"`
	Category     domain.CategoryKind `json:"category,omitempty"`
	Availability stock.Availability  `json:"availability"`
}

// AvailabilityService answers "can this item be served right now" from the
// ledger and the recipe registry, for one unit of the item.
type AvailabilityService struct {
	DB *gorm.DB
}

func (s *AvailabilityService) tracer() trace.Tracer {
	return otel.Tracer("services/AvailabilityService")
}

// Resolve classifies a single item. Items without a recipe are available.
func (s *AvailabilityService) Resolve(ctx context.Context, itemID string) (stock.Availability, error) {
	ctx, span := s.tracer().Start(ctx, "Resolve", trace.WithAttributes(attribute.String("menu_item.id", itemID)))
	defer span.End()

	out, err := s.resolveItems(ctx, []string{itemID})
	if err != nil {
		return "", err
	}
	return out[0].Availability, nil
}

// ResolveAll classifies every catalog item plus any item that only has a
// recipe, ordered by item ID.
func (s *AvailabilityService) ResolveAll(ctx context.Context) ([]ItemAvailability, error) {
	ctx, span := s.tracer().Start(ctx, "ResolveAll")
	defer span.End()

	menu, err := repo.ListMenuItems(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	recipes, err := repo.ListRecipes(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(menu)+len(recipes))
	seen := make(map[string]struct{}, cap(ids))
	for _, m := range menu {
		seen[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}
	for id := range recipes {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return s.classify(ctx, ids, recipes, menu)
}

// ResolveAffected classifies the items whose recipes use any of ingredientIDs.
func (s *AvailabilityService) ResolveAffected(ctx context.Context, ingredientIDs []string) ([]ItemAvailability, error) {
	ctx, span := s.tracer().Start(ctx, "ResolveAffected", trace.WithAttributes(attribute.Int("ingredients", len(ingredientIDs))))
	defer span.End()

	ids, err := repo.ListItemsUsingIngredients(ctx, s.DB, ingredientIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []ItemAvailability{}, nil
	}
	return s.resolveItems(ctx, ids)
}

func (s *AvailabilityService) resolveItems(ctx context.Context, ids []string) ([]ItemAvailability, error) {
	recipes, err := repo.GetRecipes(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	var menu []domain.MenuItem
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&menu).Error; err != nil {
		return nil, err
	}
	return s.classify(ctx, ids, recipes, menu)
}

func (s *AvailabilityService) classify(ctx context.Context, ids []string, recipes map[string][]domain.RecipeRequirement, menu []domain.MenuItem) ([]ItemAvailability, error) {
	var ingIDs []string
	for _, id := range ids {
		for _, r := range recipes[id] {
			ingIDs = append(ingIDs, r.IngredientID)
		}
	}
	ledger, err := repo.GetIngredientsByIDs(ctx, s.DB, ingIDs)
	if err != nil {
		return nil, err
	}
	lookup := func(id string) (stock.Level, bool) {
		ing, ok := ledger[id]
		if !ok {
			return stock.Level{}, false
		}
		return stock.Level{Quantity: ing.Quantity, MinThreshold: ing.MinThreshold}, true
	}
	byID := make(map[string]domain.MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}

	out := make([]ItemAvailability, len(ids))
	for i, id := range ids {
		out[i] = ItemAvailability{
			ItemID:       id,
			Name:         byID[id].Name,
			Category:     byID[id].Category,
			Availability: stock.Resolve(toRequirements(recipes[id]), lookup),
		}
	}
	return out, nil
}

func toRequirements(rows []domain.RecipeRequirement) []stock.Requirement {
	out := make([]stock.Requirement, len(rows))
	for i, r := range rows {
		out[i] = stock.Requirement{IngredientID: r.IngredientID, Amount: r.Amount}
	}
	return out
}
