// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the local
// copy of the menu catalog.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// UpsertMenuItem inserts item or refreshes name, category and price when an
// item with the same ID already exists.
func UpsertMenuItem(ctx context.Context, db *gorm.DB, item *domain.MenuItem) error {
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "category", "price", "updated_at"}),
		}).
		Create(item).Error
}

// GetMenuItem fetches one catalog entry by ID, or ErrNotFound.
func GetMenuItem(ctx context.Context, db *gorm.DB, id string) (*domain.MenuItem, error) {
	var m domain.MenuItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMenuItems returns the catalog ordered by category then name.
func ListMenuItems(ctx context.Context, db *gorm.DB) ([]domain.MenuItem, error) {
	var out []domain.MenuItem
	err := db.WithContext(ctx).Order("category ASC, name ASC, id ASC").Find(&out).Error
	return out, err
}
