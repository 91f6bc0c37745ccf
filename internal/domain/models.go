// Package domain defines the persistence models for the ordering and stock
// engine: ingredients and recipes, the menu catalog boundary, table sessions
// with their shared cart, sent orders, and the consumption event log. These
// types are mapped with GORM and shared by the repository and service layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ingredient is one line of the stock ledger.
//
// Fields:
//   - Quantity: current stock, never negative (deductions clamp at zero).
//   - MinThreshold: at or below this quantity dependent items report low stock.
//   - DailyAverage: optional expected consumption per day, used only for alerts.
type Ingredient struct {
	ID           string              `json:"id"            gorm:"type:varchar(64);primaryKey"`
	Name         string              `json:"name"          gorm:"type:varchar(120);not null;index"`
	Quantity     decimal.Decimal     `json:"quantity"      gorm:"type:decimal(20,4);not null"`
	Unit         string              `json:"unit"          gorm:"type:varchar(16);not null"`
	MinThreshold decimal.Decimal     `json:"min_threshold" gorm:"type:decimal(20,4);not null"`
	Category     string              `json:"category"      gorm:"type:varchar(64)"`
	DailyAverage decimal.NullDecimal `json:"daily_average" gorm:"type:decimal(20,4)"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// TableName returns the database table name for Ingredient.
func (Ingredient) TableName() string { return "ingredients" }

// RecipeRequirement states how much of one ingredient a single unit of a menu
// item consumes. The rows sharing a MenuItemID, ordered by Position, form that
// item's recipe; an item without rows is untracked.
type RecipeRequirement struct {
	ID           string          `json:"-"             gorm:"type:char(36);primaryKey"`
	MenuItemID   string          `json:"-"             gorm:"type:varchar(64);not null;index:idx_recipe_item,priority:1;uniqueIndex:ux_recipe_item_ingredient,priority:1"`
	Position     int             `json:"-"             gorm:"not null;index:idx_recipe_item,priority:2"`
	IngredientID string          `json:"ingredient_id" gorm:"type:varchar(64);not null;index;uniqueIndex:ux_recipe_item_ingredient,priority:2"`
	Amount       decimal.Decimal `json:"amount"        gorm:"type:decimal(20,4);not null"`

	// Ingredients referenced by a recipe cannot be deleted.
	Ingredient Ingredient `json:"-" gorm:"foreignKey:IngredientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for RecipeRequirement.
func (RecipeRequirement) TableName() string { return "recipe_requirements" }

// MenuItem is the read-only view of the external menu catalog.
type MenuItem struct {
	ID        string          `json:"id"       gorm:"type:varchar(64);primaryKey"`
	Name      string          `json:"name"     gorm:"type:varchar(160);not null"`
	Category  CategoryKind    `json:"category" gorm:"type:varchar(16);not null;check:category IN ('rodizio','drinks','desserts','alacarte','system')"`
	Price     decimal.Decimal `json:"price"    gorm:"type:decimal(20,4);not null"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}

// TableName returns the database table name for MenuItem.
func (MenuItem) TableName() string { return "menu_items" }

// IsRodizio reports whether units of this item count toward the round limit.
func (m MenuItem) IsRodizio() bool { return m.Category.CountsTowardRound() }

// TableSession is one continuous occupation of a table. At most one session
// per table is active; closed sessions are kept so the next one can continue
// the round numbering.
type TableSession struct {
	ID            string        `json:"id"              gorm:"type:char(36);primaryKey"`
	TableID       string        `json:"table_id"        gorm:"type:varchar(64);not null;index:idx_table_sessions,priority:1"`
	Status        SessionStatus `json:"status"          gorm:"type:varchar(16);not null;index:idx_table_sessions,priority:2;check:status IN ('active','closed')"`
	Clients       int           `json:"clients"         gorm:"not null"`
	TurnStartTime time.Time     `json:"turn_start_time" gorm:"not null"`
	RoundLimit    int           `json:"round_limit"     gorm:"not null;check:round_limit > 0"`
	RoundNumber   int           `json:"round_number"    gorm:"not null"`
	ClosedAt      *time.Time    `json:"closed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName returns the database table name for TableSession.
func (TableSession) TableName() string { return "table_sessions" }

// CartLine is an unsent line in a table's shared cart. Lines are identified by
// (session, item, client, observation, pricing kind) so that contributions from
// different diners, or with different notes, never collapse into one line.
type CartLine struct {
	ID            string          `json:"id"            gorm:"type:char(36);primaryKey"`
	SessionID     string          `json:"session_id"    gorm:"type:char(36);not null;uniqueIndex:ux_cart_line,priority:1"`
	ItemID        string          `json:"item_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_cart_line,priority:2"`
	ClientID      string          `json:"client_id"     gorm:"type:varchar(64);not null;uniqueIndex:ux_cart_line,priority:3"`
	Observation   string          `json:"observation"   gorm:"type:varchar(255);not null;default:'';uniqueIndex:ux_cart_line,priority:4"`
	PricingKind   PricingKind     `json:"pricing_kind"  gorm:"type:varchar(16);not null;uniqueIndex:ux_cart_line,priority:5"`
	Quantity      int             `json:"quantity"      gorm:"not null"`
	IsRodizioUnit bool            `json:"is_rodizio_unit" gorm:"not null"`
	UnitPrice     decimal.Decimal `json:"unit_price"    gorm:"type:decimal(20,4);not null"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Session TableSession `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CartLine.
func (CartLine) TableName() string { return "cart_lines" }

// Order groups the line items produced by one send (or one direct charge).
// DeductionStatus stays pending until the stock deduction for the order has
// been committed, which lets a failed deduction be retried on its own.
type Order struct {
	ID              string          `json:"id"               gorm:"type:char(36);primaryKey"`
	SessionID       string          `json:"session_id"       gorm:"type:char(36);not null;index"`
	TableID         string          `json:"table_id"         gorm:"type:varchar(64);not null;index"`
	Source          OrderSource     `json:"source"           gorm:"type:varchar(16);not null"`
	SentAt          time.Time       `json:"sent_at"          gorm:"not null"`
	DeductionStatus DeductionStatus `json:"deduction_status" gorm:"type:varchar(16);not null;index"`
	DeductedAt      *time.Time      `json:"deducted_at,omitempty"`
	Items           []SentLineItem  `json:"items"            gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// SentLineItem is the immutable record of a cart line at submission time.
// Only Status (kitchen workflow) and ArchivedAt (table release) change later.
type SentLineItem struct {
	ID            string          `json:"id"              gorm:"type:char(36);primaryKey"`
	OrderID       string          `json:"order_id"        gorm:"type:char(36);not null;index"`
	SessionID     string          `json:"session_id"      gorm:"type:char(36);not null;index"`
	TableID       string          `json:"table_id"        gorm:"type:varchar(64);not null"`
	ItemID        string          `json:"item_id"         gorm:"type:varchar(64);not null"`
	ClientID      string          `json:"client_id"       gorm:"type:varchar(64);not null"`
	Observation   string          `json:"observation"     gorm:"type:varchar(255);not null;default:''"`
	Quantity      int             `json:"quantity"        gorm:"not null;check:quantity > 0"`
	IsRodizioUnit bool            `json:"is_rodizio_unit" gorm:"not null"`
	PricingKind   PricingKind     `json:"pricing_kind"    gorm:"type:varchar(16);not null"`
	UnitPrice     decimal.Decimal `json:"unit_price"      gorm:"type:decimal(20,4);not null"`
	TotalPrice    decimal.Decimal `json:"total_price"     gorm:"type:decimal(20,4);not null"`
	Status        ItemStatus      `json:"status"          gorm:"type:varchar(16);not null;index;check:status IN ('sent','preparing','ready','completed')"`
	SentAt        time.Time       `json:"sent_at"         gorm:"not null;index"`
	ArchivedAt    *time.Time      `json:"archived_at,omitempty" gorm:"index"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName returns the database table name for SentLineItem.
func (SentLineItem) TableName() string { return "sent_line_items" }

// ConsumptionEvent is an append-only record of one deduction: the combined
// amount of one ingredient consumed by one order. The (order, ingredient)
// unique index keeps deduction retries from logging twice.
type ConsumptionEvent struct {
	ID           string          `json:"id"            gorm:"type:char(36);primaryKey"`
	IngredientID string          `json:"ingredient_id" gorm:"type:varchar(64);not null;index;uniqueIndex:ux_event_order_ingredient,priority:2"`
	OrderID      string          `json:"order_id"      gorm:"type:char(36);not null;uniqueIndex:ux_event_order_ingredient,priority:1"`
	Amount       decimal.Decimal `json:"amount"        gorm:"type:decimal(20,4);not null"`
	Timestamp    time.Time       `json:"timestamp"     gorm:"not null;index"`
	Type         string          `json:"type"          gorm:"type:varchar(16);not null;default:'deduction'"`
}

// TableName returns the database table name for ConsumptionEvent.
func (ConsumptionEvent) TableName() string { return "consumption_events" }
