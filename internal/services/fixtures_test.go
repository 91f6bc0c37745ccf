package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Fredcx/ezmenu/internal/config"
	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedIngredient(t *testing.T, db *gorm.DB, id, qty, threshold string) {
	t.Helper()
	ing := &domain.Ingredient{ID: id, Name: id, Unit: "g", Quantity: dec(qty), MinThreshold: dec(threshold)}
	if err := repo.CreateIngredient(context.Background(), db, ing); err != nil {
		t.Fatalf("seed ingredient %s: %v", id, err)
	}
}

func seedMenuItem(t *testing.T, db *gorm.DB, id string, cat domain.CategoryKind, price string) {
	t.Helper()
	item := &domain.MenuItem{ID: id, Name: id, Category: cat, Price: dec(price)}
	if err := repo.UpsertMenuItem(context.Background(), db, item); err != nil {
		t.Fatalf("seed menu item %s: %v", id, err)
	}
}

func seedRecipe(t *testing.T, db *gorm.DB, itemID string, reqs ...Requirement) {
	t.Helper()
	rs := &RecipeService{DB: db}
	if _, err := rs.Replace(context.Background(), itemID, reqs); err != nil {
		t.Fatalf("seed recipe %s: %v", itemID, err)
	}
}

func ingredientQty(t *testing.T, db *gorm.DB, id string) decimal.Decimal {
	t.Helper()
	ing, err := repo.GetIngredient(context.Background(), db, id)
	if err != nil {
		t.Fatalf("get ingredient %s: %v", id, err)
	}
	return ing.Quantity
}

type published struct {
	Topic, Event string
	Payload      any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingNotifier) Publish(topic, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{Topic: topic, Event: event, Payload: payload})
}

func (r *recordingNotifier) count(topic, event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Topic == topic && e.Event == event {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) payloads(topic, event string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Topic == topic && e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

// engine wires the services the way the server does.
type engine struct {
	db        *gorm.DB
	notifier  *recordingNotifier
	ledger    *LedgerService
	avail     *AvailabilityService
	recipes   *RecipeService
	deduction *DeductionService
	sessions  *SessionService
	kitchen   *KitchenService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db := newSvcDB(t)
	n := &recordingNotifier{}
	avail := &AvailabilityService{DB: db}
	ledger := NewLedgerService(db, config.LedgerSerialized, n)
	ledger.Availability = avail
	ded := &DeductionService{DB: db, Ledger: ledger}
	return &engine{
		db:        db,
		notifier:  n,
		ledger:    ledger,
		avail:     avail,
		recipes:   &RecipeService{DB: db},
		deduction: ded,
		sessions:  NewSessionService(db, ded, n, 10, config.CartCapBestEffort),
		kitchen:   &KitchenService{DB: db, Notifier: n},
	}
}
