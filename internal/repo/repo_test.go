package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// newRepoDB opens a unique in-memory database per test and migrates the
// full schema.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
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
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedIngredient(t *testing.T, db *gorm.DB, id, qty string) {
	t.Helper()
	ing := &domain.Ingredient{ID: id, Name: id, Unit: "g", Quantity: dec(qty), MinThreshold: dec("0")}
	if err := CreateIngredient(context.Background(), db, ing); err != nil {
		t.Fatalf("seed ingredient %s: %v", id, err)
	}
}

func TestIngredient_CreateGetUpdate(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	seedIngredient(t, db, "rice", "1000")
	if err := CreateIngredient(ctx, db, &domain.Ingredient{ID: "rice", Name: "Rice", Unit: "g"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetIngredient(ctx, db, "rice")
	if err != nil {
		t.Fatalf("GetIngredient: %v", err)
	}
	if !got.Quantity.Equal(dec("1000")) || got.DailyAverage.Valid {
		t.Fatalf("unexpected ingredient: %+v", got)
	}

	if err := SetIngredientQuantity(ctx, db, "rice", dec("750.5")); err != nil {
		t.Fatalf("SetIngredientQuantity: %v", err)
	}
	got, _ = GetIngredient(ctx, db, "rice")
	if !got.Quantity.Equal(dec("750.5")) {
		t.Fatalf("quantity = %s, want 750.5", got.Quantity)
	}

	if err := SetIngredientQuantity(ctx, db, "ghost", dec("1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := GetIngredient(ctx, db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIngredient_ByIDsAndLock(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedIngredient(t, db, "a", "1")
	seedIngredient(t, db, "b", "2")

	m, err := GetIngredientsByIDs(ctx, db, []string{"a", "b", "zz"})
	if err != nil || len(m) != 2 {
		t.Fatalf("GetIngredientsByIDs = %v, %v", m, err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		locked, err := LockIngredients(ctx, tx, []string{"b"})
		if err != nil {
			return err
		}
		if _, ok := locked["b"]; !ok || len(locked) != 1 {
			return fmt.Errorf("unexpected lock set %v", locked)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("LockIngredients: %v", err)
	}
	all, err := ListIngredients(ctx, db)
	if err != nil || len(all) != 2 || all[0].ID != "a" {
		t.Fatalf("ListIngredients = %v, %v", all, err)
	}
}

func TestRecipe_ReplaceAndQuery(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedIngredient(t, db, "rice", "100")
	seedIngredient(t, db, "salmon", "100")

	reqs := []domain.RecipeRequirement{
		{IngredientID: "salmon", Amount: dec("30")},
		{IngredientID: "rice", Amount: dec("20")},
	}
	if err := ReplaceRecipe(ctx, db, "uramaki", reqs); err != nil {
		t.Fatalf("ReplaceRecipe: %v", err)
	}
	got, err := GetRecipe(ctx, db, "uramaki")
	if err != nil || len(got) != 2 {
		t.Fatalf("GetRecipe = %v, %v", got, err)
	}
	if got[0].IngredientID != "salmon" || got[1].IngredientID != "rice" {
		t.Fatalf("recipe order not preserved: %+v", got)
	}

	// Replace shrinks the recipe.
	if err := ReplaceRecipe(ctx, db, "uramaki", reqs[1:]); err != nil {
		t.Fatalf("ReplaceRecipe #2: %v", err)
	}
	got, _ = GetRecipe(ctx, db, "uramaki")
	if len(got) != 1 || got[0].IngredientID != "rice" {
		t.Fatalf("unexpected recipe after replace: %+v", got)
	}

	// Unknown ingredient is rejected by the foreign key.
	if err := ReplaceRecipe(ctx, db, "mystery", []domain.RecipeRequirement{{IngredientID: "ghost", Amount: dec("1")}}); err == nil {
		t.Fatalf("expected FK violation for unknown ingredient")
	}

	many, err := GetRecipes(ctx, db, []string{"uramaki", "cola"})
	if err != nil || len(many) != 1 {
		t.Fatalf("GetRecipes = %v, %v", many, err)
	}
	items, err := ListItemsUsingIngredients(ctx, db, []string{"rice", "salmon"})
	if err != nil || len(items) != 1 || items[0] != "uramaki" {
		t.Fatalf("ListItemsUsingIngredients = %v, %v", items, err)
	}
	all, err := ListRecipes(ctx, db)
	if err != nil || len(all["uramaki"]) != 1 {
		t.Fatalf("ListRecipes = %v, %v", all, err)
	}
}

func TestMenu_Upsert(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	item := &domain.MenuItem{ID: "cola", Name: "Cola", Category: domain.CategoryDrinks, Price: dec("6")}
	if err := UpsertMenuItem(ctx, db, item); err != nil {
		t.Fatalf("UpsertMenuItem: %v", err)
	}
	item2 := &domain.MenuItem{ID: "cola", Name: "Cola Zero", Category: domain.CategoryDrinks, Price: dec("6.5")}
	if err := UpsertMenuItem(ctx, db, item2); err != nil {
		t.Fatalf("UpsertMenuItem #2: %v", err)
	}
	got, err := GetMenuItem(ctx, db, "cola")
	if err != nil || got.Name != "Cola Zero" || !got.Price.Equal(dec("6.5")) {
		t.Fatalf("GetMenuItem = %+v, %v", got, err)
	}
	list, err := ListMenuItems(ctx, db)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListMenuItems = %v, %v", list, err)
	}
}

func TestSession_Lifecycle(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := GetLastSession(ctx, db, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for new table, got %v", err)
	}
	s := &domain.TableSession{ID: "s1", TableID: "t1", Status: domain.SessionActive, Clients: 2, TurnStartTime: now, RoundLimit: 10, RoundNumber: 1}
	if err := CreateSession(ctx, db, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := UpdateSessionClients(ctx, db, "s1", 4); err != nil {
		t.Fatalf("UpdateSessionClients: %v", err)
	}
	act, err := GetActiveSession(ctx, db, "t1")
	if err != nil || act.Clients != 4 {
		t.Fatalf("GetActiveSession = %+v, %v", act, err)
	}
	if err := CloseSession(ctx, db, "s1", now); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if err := CloseSession(ctx, db, "s1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("closing twice should be ErrNotFound, got %v", err)
	}
	if _, err := GetActiveSession(ctx, db, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no active session, got %v", err)
	}
	last, err := GetLastSession(ctx, db, "t1")
	if err != nil || last.Status != domain.SessionClosed || last.RoundNumber != 1 {
		t.Fatalf("GetLastSession = %+v, %v", last, err)
	}
}

func TestCart_Lines(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	if err := CreateSession(ctx, db, &domain.TableSession{ID: "s1", TableID: "t1", Status: domain.SessionActive, Clients: 1, TurnStartTime: now, RoundLimit: 10, RoundNumber: 1}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	l1 := &domain.CartLine{ID: "l1", SessionID: "s1", ItemID: "sushi", ClientID: "c1", PricingKind: domain.PricingRodizio, Quantity: 3, IsRodizioUnit: true}
	l2 := &domain.CartLine{ID: "l2", SessionID: "s1", ItemID: "cola", ClientID: "c1", PricingKind: domain.PricingAlacarte, Quantity: 2, UnitPrice: dec("6")}
	for _, l := range []*domain.CartLine{l1, l2} {
		if err := CreateCartLine(ctx, db, l); err != nil {
			t.Fatalf("CreateCartLine: %v", err)
		}
	}
	dup := &domain.CartLine{ID: "l3", SessionID: "s1", ItemID: "sushi", ClientID: "c1", PricingKind: domain.PricingRodizio, Quantity: 1, IsRodizioUnit: true}
	if err := CreateCartLine(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	found, err := FindCartLine(ctx, db, CartKey{SessionID: "s1", ItemID: "sushi", ClientID: "c1", PricingKind: domain.PricingRodizio})
	if err != nil || found.ID != "l1" {
		t.Fatalf("FindCartLine = %+v, %v", found, err)
	}
	n, err := SumCartRodizioUnits(ctx, db, "s1")
	if err != nil || n != 3 {
		t.Fatalf("SumCartRodizioUnits = %d, %v", n, err)
	}
	if err := SetCartLineQuantity(ctx, db, "l1", 5); err != nil {
		t.Fatalf("SetCartLineQuantity: %v", err)
	}
	if n, _ := SumCartRodizioUnits(ctx, db, "s1"); n != 5 {
		t.Fatalf("rodizio units after update = %d, want 5", n)
	}
	deleted, err := DeleteCartLines(ctx, db, []string{"l1"})
	if err != nil || deleted != 1 {
		t.Fatalf("DeleteCartLines = %d, %v", deleted, err)
	}
	if err := DeleteCartLine(ctx, db, "s1", "l1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	lines, _ := ListCartLines(ctx, db, "s1")
	if len(lines) != 1 || lines[0].ID != "l2" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if err := ClearCart(ctx, db, "s1"); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if lines, _ := ListCartLines(ctx, db, "s1"); len(lines) != 0 {
		t.Fatalf("cart not cleared: %+v", lines)
	}
}

func TestOrders_SentUnitsKitchenAndDeduction(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	turn := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	o := &domain.Order{
		ID: "o1", SessionID: "s1", TableID: "t1", Source: domain.SourceCart,
		SentAt: turn.Add(time.Minute), DeductionStatus: domain.DeductionPending,
		Items: []domain.SentLineItem{
			{ID: "i1", SessionID: "s1", TableID: "t1", ItemID: "sushi", ClientID: "c1", Quantity: 4, IsRodizioUnit: true, PricingKind: domain.PricingRodizio, Status: domain.ItemSent, SentAt: turn.Add(time.Minute)},
			{ID: "i2", SessionID: "s1", TableID: "t1", ItemID: "cola", ClientID: "c1", Quantity: 1, PricingKind: domain.PricingAlacarte, UnitPrice: dec("6"), TotalPrice: dec("6"), Status: domain.ItemSent, SentAt: turn.Add(time.Minute)},
		},
	}
	if err := CreateOrder(ctx, db, o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	old := &domain.Order{
		ID: "o0", SessionID: "s1", TableID: "t1", Source: domain.SourceCart,
		SentAt: turn.Add(-time.Hour), DeductionStatus: domain.DeductionApplied,
		Items: []domain.SentLineItem{
			{ID: "i0", SessionID: "s1", TableID: "t1", ItemID: "sushi", ClientID: "c1", Quantity: 7, IsRodizioUnit: true, PricingKind: domain.PricingRodizio, Status: domain.ItemCompleted, SentAt: turn.Add(-time.Hour)},
		},
	}
	if err := CreateOrder(ctx, db, old); err != nil {
		t.Fatalf("CreateOrder old: %v", err)
	}

	n, err := SumSentRodizioUnits(ctx, db, "s1", turn)
	if err != nil || n != 4 {
		t.Fatalf("SumSentRodizioUnits = %d, %v (want 4, previous turn excluded)", n, err)
	}

	got, err := GetOrder(ctx, db, "o1")
	if err != nil || len(got.Items) != 2 {
		t.Fatalf("GetOrder = %+v, %v", got, err)
	}
	pending, err := ListPendingDeductions(ctx, db, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != "o1" || len(pending[0].Items) != 2 {
		t.Fatalf("ListPendingDeductions = %+v, %v", pending, err)
	}
	ok, err := MarkOrderDeducted(ctx, db, "o1", turn)
	if err != nil || !ok {
		t.Fatalf("MarkOrderDeducted = %v, %v", ok, err)
	}
	ok, _ = MarkOrderDeducted(ctx, db, "o1", turn)
	if ok {
		t.Fatalf("second MarkOrderDeducted should report false")
	}

	live, err := ListKitchenItems(ctx, db, []domain.ItemStatus{domain.ItemSent})
	if err != nil || len(live) != 2 {
		t.Fatalf("ListKitchenItems = %+v, %v", live, err)
	}
	moved, err := UpdateSentItemStatus(ctx, db, "i1", domain.ItemSent, domain.ItemPreparing)
	if err != nil || !moved {
		t.Fatalf("UpdateSentItemStatus = %v, %v", moved, err)
	}
	moved, _ = UpdateSentItemStatus(ctx, db, "i1", domain.ItemSent, domain.ItemPreparing)
	if moved {
		t.Fatalf("stale transition should not apply")
	}

	archived, err := ArchiveSessionItems(ctx, db, "s1", turn.Add(2*time.Hour))
	if err != nil || archived != 3 {
		t.Fatalf("ArchiveSessionItems = %d, %v", archived, err)
	}
	if items, _ := ListSessionItems(ctx, db, "s1"); len(items) != 0 {
		t.Fatalf("archived items still listed: %+v", items)
	}
	orders, err := ListOrdersBySession(ctx, db, "s1")
	if err != nil || len(orders) != 2 || orders[0].ID != "o0" {
		t.Fatalf("ListOrdersBySession = %+v, %v", orders, err)
	}
}

func TestEvents_AppendAndWindow(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	evs := []domain.ConsumptionEvent{
		{ID: "e1", IngredientID: "rice", OrderID: "o1", Amount: dec("20"), Timestamp: base.Add(-48 * time.Hour), Type: domain.EventDeduction},
		{ID: "e2", IngredientID: "rice", OrderID: "o2", Amount: dec("10"), Timestamp: base, Type: domain.EventDeduction},
	}
	if err := CreateConsumptionEvents(ctx, db, evs); err != nil {
		t.Fatalf("CreateConsumptionEvents: %v", err)
	}
	again := []domain.ConsumptionEvent{{ID: "e3", IngredientID: "rice", OrderID: "o2", Amount: dec("10"), Timestamp: base, Type: domain.EventDeduction}}
	if err := CreateConsumptionEvents(ctx, db, again); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := ListConsumptionEventsSince(ctx, db, base.Add(-24*time.Hour))
	if err != nil || len(got) != 1 || got[0].ID != "e2" {
		t.Fatalf("ListConsumptionEventsSince = %+v, %v", got, err)
	}
	byOrder, err := ListConsumptionEventsByOrder(ctx, db, "o1")
	if err != nil || len(byOrder) != 1 {
		t.Fatalf("ListConsumptionEventsByOrder = %+v, %v", byOrder, err)
	}
}

func TestIdempotency_GetCreatePurge(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := GetIdempotency(ctx, db, "c1", "   ", "k1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank table should be ErrNotFound, got %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "c1", "t1", "k1", "o1", 201, time.Hour); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "c1", "t1", "k1", "o2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	rec, err := GetIdempotency(ctx, db, "c1", "t1", "k1", now)
	if err != nil || rec.OrderID != "o1" {
		t.Fatalf("GetIdempotency = %+v, %v", rec, err)
	}
	if _, err := GetIdempotency(ctx, db, "c1", "t1", "k1", now.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record should be ErrNotFound, got %v", err)
	}
	n, err := PurgeExpiredIdempotency(ctx, db, now.Add(2*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredIdempotency = %d, %v", n, err)
	}
}

func TestIngredientsStats(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	n, max, err := IngredientsStats(ctx, db)
	if err != nil || n != 0 || max != nil {
		t.Fatalf("empty stats = %d, %v, %v", n, max, err)
	}
	seedIngredient(t, db, "a", "1")
	seedIngredient(t, db, "b", "1")
	n, max, err = IngredientsStats(ctx, db)
	if err != nil || n != 2 || max == nil || max.IsZero() {
		t.Fatalf("stats = %d, %v, %v", n, max, err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "", ""); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestOpenSQLite_FileAndMigrate(t *testing.T) {
	path := t.TempDir() + "/ez.db"
	db, err := Open("sqlite", path, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	var fkOn int
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil || fkOn != 1 {
		t.Fatalf("foreign_keys = %d, %v", fkOn, err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if !db.Migrator().HasTable(&domain.ConsumptionEvent{}) {
		t.Fatalf("consumption_events missing")
	}
}

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	bad := t.TempDir() + "/does-not-exist/app.db"
	if db, err := OpenSQLite(bad); err == nil || db != nil {
		t.Fatalf("expected error opening %q", bad)
	}
}
