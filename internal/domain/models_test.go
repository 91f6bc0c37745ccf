package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&Ingredient{}, &RecipeRequirement{}, &MenuItem{},
		&TableSession{}, &CartLine{}, &Order{}, &SentLineItem{},
		&ConsumptionEvent{}, &Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Ingredient{}.TableName():        "ingredients",
		RecipeRequirement{}.TableName(): "recipe_requirements",
		MenuItem{}.TableName():          "menu_items",
		TableSession{}.TableName():      "table_sessions",
		CartLine{}.TableName():          "cart_lines",
		Order{}.TableName():             "orders",
		SentLineItem{}.TableName():      "sent_line_items",
		ConsumptionEvent{}.TableName():  "consumption_events",
		Idempotency{}.TableName():       "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("table name = %q, want %q", got, want)
		}
	}
}

func TestMigration_Indexes(t *testing.T) {
	db := newTestDB(t)
	m := db.Migrator()

	checks := []struct {
		model any
		index string
	}{
		{&RecipeRequirement{}, "ux_recipe_item_ingredient"},
		{&CartLine{}, "ux_cart_line"},
		{&ConsumptionEvent{}, "ux_event_order_ingredient"},
		{&Idempotency{}, "ux_client_table_key"},
		{&TableSession{}, "idx_table_sessions"},
	}
	for _, c := range checks {
		if !m.HasIndex(c.model, c.index) {
			t.Fatalf("expected index %s", c.index)
		}
	}
}

func TestConsumptionEvent_UniquePerOrderIngredient(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	if err := db.Create(&Ingredient{ID: "rice", Name: "Rice", Unit: "g", Quantity: decimal.NewFromInt(10)}).Error; err != nil {
		t.Fatalf("seed ingredient: %v", err)
	}
	ev := ConsumptionEvent{ID: "e1", IngredientID: "rice", OrderID: "o1", Amount: decimal.NewFromInt(3), Timestamp: now, Type: EventDeduction}
	if err := db.Create(&ev).Error; err != nil {
		t.Fatalf("insert event: %v", err)
	}
	dup := ev
	dup.ID = "e2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation on (order_id, ingredient_id)")
	}
}

func TestRecipeRequirement_RestrictsIngredientDelete(t *testing.T) {
	db := newTestDB(t)

	if err := db.Create(&Ingredient{ID: "salmon", Name: "Salmon", Unit: "g"}).Error; err != nil {
		t.Fatalf("seed ingredient: %v", err)
	}
	req := RecipeRequirement{ID: "r1", MenuItemID: "sashimi", IngredientID: "salmon", Amount: decimal.NewFromInt(80)}
	if err := db.Omit("Ingredient").Create(&req).Error; err != nil {
		t.Fatalf("insert requirement: %v", err)
	}
	if err := db.Delete(&Ingredient{}, "id = ?", "salmon").Error; err == nil {
		t.Fatalf("expected delete of referenced ingredient to fail")
	}
}

func TestIdempotency_UniqueKey(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	rec := Idempotency{ID: "i1", ClientID: "c1", TableID: "t1", Key: "k1", OrderID: "o1", Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got Idempotency
	if err := db.First(&got, "id = ?", "i1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.OrderID != "o1" || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected row: %+v", got)
	}

	dup := Idempotency{ID: "i2", ClientID: "c1", TableID: "t1", Key: "k1", OrderID: "o2", Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation on (client_id, table_id, key)")
	}

	other := Idempotency{ID: "i3", ClientID: "c1", TableID: "t2", Key: "k1", OrderID: "o3", Status: 201, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("same key on another table should be allowed: %v", err)
	}
}
