package domain

import "time"

// Idempotency records the order produced by a previous send, keyed by
// (client_id, table_id, key). A retried send carrying the same key returns
// the recorded order instead of submitting the cart again.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	ClientID  string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_client_table_key,priority:1"`
	TableID   string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_client_table_key,priority:2"`
	Key       string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_client_table_key,priority:3"`
	OrderID   string    `gorm:"type:char(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
