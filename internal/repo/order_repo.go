// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for sent orders
// and their line items, including the kitchen workflow queries.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// CreateOrder inserts an order together with its line items.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(o).Error
}

// GetOrder fetches an order with its items, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("sent_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrdersBySession returns every order of a session, oldest first.
func ListOrdersBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("sent_at ASC, id ASC") }).
		Where("session_id = ?", sessionID).
		Order("sent_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListPendingDeductions returns up to limit orders whose stock deduction has
// not been applied yet, oldest first.
func ListPendingDeductions(ctx context.Context, db *gorm.DB, limit int) ([]domain.Order, error) {
	var out []domain.Order
	q := db.WithContext(ctx).
		Preload("Items").
		Where("deduction_status = ?", domain.DeductionPending).
		Order("sent_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// MarkOrderDeducted flips a pending order to applied. It reports false when
// the order was already applied (or does not exist).
func MarkOrderDeducted(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND deduction_status = ?", id, domain.DeductionPending).
		Updates(map[string]any{"deduction_status": domain.DeductionApplied, "deducted_at": at})
	return res.RowsAffected > 0, res.Error
}

// SumSentRodizioUnits returns the rodízio units the session has already sent
// since the start of its current turn.
func SumSentRodizioUnits(ctx context.Context, db *gorm.DB, sessionID string, since time.Time) (int, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.SentLineItem{}).
		Where("session_id = ? AND is_rodizio_unit = ? AND sent_at >= ? AND archived_at IS NULL", sessionID, true, since.UTC()).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

// ListSessionItems returns the non-archived sent items of a session.
func ListSessionItems(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.SentLineItem, error) {
	var out []domain.SentLineItem
	err := db.WithContext(ctx).
		Where("session_id = ? AND archived_at IS NULL", sessionID).
		Order("sent_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListKitchenItems returns non-archived sent items, oldest first. When
// statuses is non-empty only items in those statuses are returned.
func ListKitchenItems(ctx context.Context, db *gorm.DB, statuses []domain.ItemStatus) ([]domain.SentLineItem, error) {
	var out []domain.SentLineItem
	q := db.WithContext(ctx).Where("archived_at IS NULL")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("sent_at ASC, id ASC").Find(&out).Error
	return out, err
}

// GetSentItem fetches one sent line item, or ErrNotFound.
func GetSentItem(ctx context.Context, db *gorm.DB, id string) (*domain.SentLineItem, error) {
	var it domain.SentLineItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// UpdateSentItemStatus moves an item from one status to another. The update
// only applies while the item is still in from, and reports whether it did.
func UpdateSentItemStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.ItemStatus) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.SentLineItem{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected > 0, res.Error
}

// ArchiveSessionItems stamps archived_at on every live item of the session.
func ArchiveSessionItems(ctx context.Context, db *gorm.DB, sessionID string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.SentLineItem{}).
		Where("session_id = ? AND archived_at IS NULL", sessionID).
		Updates(map[string]any{"archived_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}
