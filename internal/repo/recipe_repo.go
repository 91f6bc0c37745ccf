// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for recipes, the
// ordered lists of ingredient requirements attached to menu items.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// GetRecipe returns the requirements of one menu item in recipe order. An
// empty slice means the item is untracked.
func GetRecipe(ctx context.Context, db *gorm.DB, itemID string) ([]domain.RecipeRequirement, error) {
	var out []domain.RecipeRequirement
	err := db.WithContext(ctx).
		Where("menu_item_id = ?", itemID).
		Order("position ASC").
		Find(&out).Error
	return out, err
}

// GetRecipes returns the recipes of several menu items keyed by item ID.
// Untracked items are absent from the map.
func GetRecipes(ctx context.Context, db *gorm.DB, itemIDs []string) (map[string][]domain.RecipeRequirement, error) {
	out := make(map[string][]domain.RecipeRequirement)
	if len(itemIDs) == 0 {
		return out, nil
	}
	var rows []domain.RecipeRequirement
	err := db.WithContext(ctx).
		Where("menu_item_id IN ?", itemIDs).
		Order("menu_item_id ASC, position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.MenuItemID] = append(out[r.MenuItemID], r)
	}
	return out, nil
}

// ListRecipes returns every stored recipe keyed by menu item ID.
func ListRecipes(ctx context.Context, db *gorm.DB) (map[string][]domain.RecipeRequirement, error) {
	var rows []domain.RecipeRequirement
	if err := db.WithContext(ctx).Order("menu_item_id ASC, position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]domain.RecipeRequirement)
	for _, r := range rows {
		out[r.MenuItemID] = append(out[r.MenuItemID], r)
	}
	return out, nil
}

// ReplaceRecipe swaps the recipe of itemID for reqs. Positions follow the
// slice order. Call it inside a transaction so readers never observe a
// half-written recipe.
func ReplaceRecipe(ctx context.Context, db *gorm.DB, itemID string, reqs []domain.RecipeRequirement) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("menu_item_id = ?", itemID).Delete(&domain.RecipeRequirement{}).Error; err != nil {
		return err
	}
	if len(reqs) == 0 {
		return nil
	}
	rows := make([]domain.RecipeRequirement, len(reqs))
	for i, r := range reqs {
		rows[i] = domain.RecipeRequirement{
			ID:           uuid.NewString(),
			MenuItemID:   itemID,
			Position:     i,
			IngredientID: r.IngredientID,
			Amount:       r.Amount,
		}
	}
	return tx.Omit("Ingredient").Create(&rows).Error
}

// ListItemsUsingIngredients returns the distinct menu item IDs whose recipes
// reference any of ingredientIDs.
func ListItemsUsingIngredients(ctx context.Context, db *gorm.DB, ingredientIDs []string) ([]string, error) {
	var out []string
	if len(ingredientIDs) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Model(&domain.RecipeRequirement{}).
		Where("ingredient_id IN ?", ingredientIDs).
		Distinct().
		Order("menu_item_id ASC").
		Pluck("menu_item_id", &out).Error
	return out, err
}
