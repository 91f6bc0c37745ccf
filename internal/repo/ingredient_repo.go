// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Ingredient ledger.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
// Stock arithmetic (clamping, thresholds) lives in the stock package and
// the services layer.
//
// Error semantics:
//   - Missing rows yield ErrNotFound (gorm.ErrRecordNotFound).
//   - A second ingredient with an existing ID yields ErrDuplicate.
//   - Any other DB error is propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// CreateIngredient inserts a new ledger row. Timestamps are set to UTC now.
func CreateIngredient(ctx context.Context, db *gorm.DB, ing *domain.Ingredient) error {
	now := time.Now().UTC()
	ing.CreatedAt, ing.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(ing).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetIngredient fetches a single ingredient by ID, or ErrNotFound.
func GetIngredient(ctx context.Context, db *gorm.DB, id string) (*domain.Ingredient, error) {
	var ing domain.Ingredient
	if err := db.WithContext(ctx).Where("id = ?", id).First(&ing).Error; err != nil {
		return nil, err
	}
	return &ing, nil
}

// GetIngredientsByIDs returns the ingredients whose IDs are in ids, keyed by
// ID. IDs without a row are simply absent from the map.
func GetIngredientsByIDs(ctx context.Context, db *gorm.DB, ids []string) (map[string]domain.Ingredient, error) {
	out := make(map[string]domain.Ingredient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Ingredient
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// LockIngredients loads the given ingredients for update. On databases that
// support row locks the rows stay locked until the surrounding transaction
// ends; elsewhere this is a plain read and callers serialize in process.
func LockIngredients(ctx context.Context, db *gorm.DB, ids []string) (map[string]domain.Ingredient, error) {
	out := make(map[string]domain.Ingredient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC")
	if supportsRowLocks(db) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []domain.Ingredient
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// ListIngredients returns the whole ledger ordered by ID.
func ListIngredients(ctx context.Context, db *gorm.DB) ([]domain.Ingredient, error) {
	var out []domain.Ingredient
	err := db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// SetIngredientQuantity overwrites the stored quantity. It returns ErrNotFound
// when no row matches id.
func SetIngredientQuantity(ctx context.Context, db *gorm.DB, id string, qty decimal.Decimal) error {
	return UpdateIngredientFields(ctx, db, id, map[string]any{"quantity": qty})
}

// UpdateIngredientFields applies a partial update and bumps updated_at.
// It returns ErrNotFound when no row matches id.
func UpdateIngredientFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Ingredient{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
