// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only consumption event log.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// CreateConsumptionEvents appends events in one statement. A second write for
// the same (order, ingredient) pair yields ErrDuplicate.
func CreateConsumptionEvents(ctx context.Context, db *gorm.DB, evs []domain.ConsumptionEvent) error {
	if len(evs) == 0 {
		return nil
	}
	if err := db.WithContext(ctx).Create(&evs).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListConsumptionEventsSince returns events with timestamp >= from, oldest
// first. Times are stored in UTC, so from is normalized before comparing.
func ListConsumptionEventsSince(ctx context.Context, db *gorm.DB, from time.Time) ([]domain.ConsumptionEvent, error) {
	var out []domain.ConsumptionEvent
	err := db.WithContext(ctx).
		Where(clause.Gte{Column: clause.Column{Name: "timestamp"}, Value: from.UTC()}).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "timestamp"}},
			{Column: clause.Column{Name: "id"}},
		}}).
		Find(&out).Error
	return out, err
}

// ListConsumptionEventsByOrder returns the events written for one order.
func ListConsumptionEventsByOrder(ctx context.Context, db *gorm.DB, orderID string) ([]domain.ConsumptionEvent, error) {
	var out []domain.ConsumptionEvent
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("ingredient_id ASC").
		Find(&out).Error
	return out, err
}
