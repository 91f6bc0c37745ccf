// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for table sessions.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// CreateSession inserts a new table session.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.TableSession) error {
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	return db.WithContext(ctx).Create(s).Error
}

// GetActiveSession returns the active session for tableID, or ErrNotFound.
func GetActiveSession(ctx context.Context, db *gorm.DB, tableID string) (*domain.TableSession, error) {
	var s domain.TableSession
	err := db.WithContext(ctx).
		Where("table_id = ? AND status = ?", tableID, domain.SessionActive).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetLastSession returns the most recent session for tableID in any status,
// or ErrNotFound when the table has never been opened.
func GetLastSession(ctx context.Context, db *gorm.DB, tableID string) (*domain.TableSession, error) {
	var s domain.TableSession
	err := db.WithContext(ctx).
		Where("table_id = ?", tableID).
		Order("created_at DESC, round_number DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSessionClients sets the diner count of an active session.
func UpdateSessionClients(ctx context.Context, db *gorm.DB, id string, clients int) error {
	res := db.WithContext(ctx).
		Model(&domain.TableSession{}).
		Where("id = ? AND status = ?", id, domain.SessionActive).
		Updates(map[string]any{"clients": clients, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseSession marks an active session closed at the given instant.
func CloseSession(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.TableSession{}).
		Where("id = ? AND status = ?", id, domain.SessionActive).
		Updates(map[string]any{"status": domain.SessionClosed, "closed_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
