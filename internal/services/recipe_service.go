package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/repo"
)

// Requirement is one line of a recipe as submitted by an administrator.
type Requirement struct {
	IngredientID string          `json:"ingredient_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// RecipeService is the registry of recipes keyed by menu item ID.
type RecipeService struct {
	DB *gorm.DB
}

// Get returns the ordered requirements of itemID. An untracked item yields
// an empty slice, not an error.
func (s *RecipeService) Get(ctx context.Context, itemID string) ([]Requirement, error) {
	ctx, span := otel.Tracer("services/RecipeService").Start(ctx, "Get",
		trace.WithAttributes(attribute.String("menu_item.id", itemID)))
	defer span.End()

	rows, err := repo.GetRecipe(ctx, s.DB, itemID)
	if err != nil {
		return nil, err
	}
	out := make([]Requirement, len(rows))
	for i, r := range rows {
		out[i] = Requirement{IngredientID: r.IngredientID, Amount: r.Amount}
	}
	return out, nil
}

// Replace swaps the whole recipe of itemID. It rejects duplicate ingredients
// and non-positive amounts before touching storage, and references to
// unknown ingredients with ErrIngredientNotFound. An empty list makes the
// item untracked.
func (s *RecipeService) Replace(ctx context.Context, itemID string, reqs []Requirement) ([]Requirement, error) {
	ctx, span := otel.Tracer("services/RecipeService").Start(ctx, "Replace",
		trace.WithAttributes(
			attribute.String("menu_item.id", itemID),
			attribute.Int("requirements", len(reqs)),
		))
	defer span.End()

	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, validationf("menu item id is required")
	}
	seen := make(map[string]struct{}, len(reqs))
	ids := make([]string, 0, len(reqs))
	for i, r := range reqs {
		id := strings.TrimSpace(r.IngredientID)
		if id == "" {
			return nil, validationf("requirement %d: ingredient_id is required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, validationf("duplicate ingredient %q", id)
		}
		if !r.Amount.IsPositive() {
			return nil, validationf("requirement %d: amount must be > 0", i)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		reqs[i].IngredientID = id
	}

	rows := make([]domain.RecipeRequirement, len(reqs))
	for i, r := range reqs {
		rows[i] = domain.RecipeRequirement{IngredientID: r.IngredientID, Amount: r.Amount}
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		known, err := repo.GetIngredientsByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				return ErrIngredientNotFound
			}
		}
		return repo.ReplaceRecipe(ctx, tx, itemID, rows)
	})
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []Requirement{}
	}
	return reqs, nil
}
