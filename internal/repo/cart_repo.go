// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the shared
// cart of a table session.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// CartKey identifies a cart line within a session.
type CartKey struct {
	SessionID   string
	ItemID      string
	ClientID    string
	Observation string
	PricingKind domain.PricingKind
}

// ListCartLines returns the session's unsent lines in insertion order.
func ListCartLines(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.CartLine, error) {
	var out []domain.CartLine
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// FindCartLine looks a line up by its identity tuple, or ErrNotFound.
func FindCartLine(ctx context.Context, db *gorm.DB, k CartKey) (*domain.CartLine, error) {
	var l domain.CartLine
	err := db.WithContext(ctx).
		Where("session_id = ? AND item_id = ? AND client_id = ? AND observation = ? AND pricing_kind = ?",
			k.SessionID, k.ItemID, k.ClientID, k.Observation, k.PricingKind).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateCartLine inserts a new cart line. A concurrent insert of the same
// identity tuple yields ErrDuplicate.
func CreateCartLine(ctx context.Context, db *gorm.DB, l *domain.CartLine) error {
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	if err := db.WithContext(ctx).Omit("Session").Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// SetCartLineQuantity overwrites the quantity of a line.
func SetCartLineQuantity(ctx context.Context, db *gorm.DB, id string, qty int) error {
	res := db.WithContext(ctx).
		Model(&domain.CartLine{}).
		Where("id = ?", id).
		Updates(map[string]any{"quantity": qty, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCartLine removes a single line of sessionID.
func DeleteCartLine(ctx context.Context, db *gorm.DB, sessionID, id string) error {
	res := db.WithContext(ctx).Where("id = ? AND session_id = ?", id, sessionID).Delete(&domain.CartLine{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCartLines removes exactly the listed lines and reports how many rows
// went away. Lines added after they were read are left untouched.
func DeleteCartLines(ctx context.Context, db *gorm.DB, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.CartLine{})
	return res.RowsAffected, res.Error
}

// ClearCart removes every line of the session.
func ClearCart(ctx context.Context, db *gorm.DB, sessionID string) error {
	return db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&domain.CartLine{}).Error
}

// SumCartRodizioUnits returns the number of rodízio units waiting in the cart.
func SumCartRodizioUnits(ctx context.Context, db *gorm.DB, sessionID string) (int, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CartLine{}).
		Where("session_id = ? AND is_rodizio_unit = ?", sessionID, true).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

// IncrementCartLine adds by to a line's quantity in a single statement.
func IncrementCartLine(ctx context.Context, db *gorm.DB, id string, by int) error {
	res := db.WithContext(ctx).
		Model(&domain.CartLine{}).
		Where("id = ?", id).
		Updates(map[string]any{"quantity": gorm.Expr("quantity + ?", by), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
