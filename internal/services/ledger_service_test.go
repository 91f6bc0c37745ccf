package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Fredcx/ezmenu/internal/config"
)

func TestLedgerService_Create_NormalizesAndRejectsDuplicates(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	ing, err := e.ledger.Create(ctx, IngredientInput{
		ID: "salmon", Name: "  salmão   fresco ", Unit: " KG ",
		Quantity: dec("10"), MinThreshold: dec("2"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ing.Name != "Salmão Fresco" {
		t.Fatalf("name not normalized: %q", ing.Name)
	}
	if ing.Unit != "kg" {
		t.Fatalf("unit not lowercased: %q", ing.Unit)
	}
	if e.notifier.count(StockTopic, EventStockChanged) != 1 {
		t.Fatalf("expected one stock notification")
	}

	_, err = e.ledger.Create(ctx, IngredientInput{ID: "salmon", Name: "x", Unit: "g"})
	if !errors.Is(err, ErrIngredientExists) {
		t.Fatalf("expected ErrIngredientExists, got %v", err)
	}

	gen, err := e.ledger.Create(ctx, IngredientInput{Name: "rice", Unit: "g"})
	if err != nil {
		t.Fatalf("Create without id: %v", err)
	}
	if gen.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestLedgerService_Create_Validation(t *testing.T) {
	e := newEngine(t)
	neg := dec("-1")
	cases := []IngredientInput{
		{Name: "", Unit: "g"},
		{Name: "rice", Unit: " "},
		{Name: "rice", Unit: "g", Quantity: dec("-1")},
		{Name: "rice", Unit: "g", MinThreshold: dec("-0.5")},
		{Name: "rice", Unit: "g", DailyAverage: &neg},
	}
	for i, in := range cases {
		if _, err := e.ledger.Create(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestLedgerService_Adjust_ClampsAtZero(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	seedIngredient(t, e.db, "nori", "10", "2")

	ing, err := e.ledger.Adjust(ctx, "nori", dec("5"))
	if err != nil {
		t.Fatalf("Adjust up: %v", err)
	}
	if !ing.Quantity.Equal(dec("15")) {
		t.Fatalf("want 15, got %s", ing.Quantity)
	}

	ing, err = e.ledger.Adjust(ctx, "nori", dec("-40"))
	if err != nil {
		t.Fatalf("Adjust down: %v", err)
	}
	if !ing.Quantity.IsZero() {
		t.Fatalf("want clamp to 0, got %s", ing.Quantity)
	}
	if !ingredientQty(t, e.db, "nori").IsZero() {
		t.Fatalf("stored quantity not clamped")
	}

	if _, err := e.ledger.Adjust(ctx, "missing", dec("1")); !errors.Is(err, ErrIngredientNotFound) {
		t.Fatalf("expected ErrIngredientNotFound, got %v", err)
	}
}

func TestLedgerService_Overrides(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	seedIngredient(t, e.db, "rice", "1000", "100")

	if _, err := e.ledger.SetQuantity(ctx, "rice", dec("-1")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	ing, err := e.ledger.SetQuantity(ctx, "rice", dec("42.5"))
	if err != nil || !ing.Quantity.Equal(dec("42.5")) {
		t.Fatalf("SetQuantity: %v %v", ing, err)
	}
	ing, err = e.ledger.SetMinThreshold(ctx, "rice", dec("50"))
	if err != nil || !ing.MinThreshold.Equal(dec("50")) {
		t.Fatalf("SetMinThreshold: %v %v", ing, err)
	}
	avg := dec("300")
	ing, err = e.ledger.SetDailyAverage(ctx, "rice", &avg)
	if err != nil || !ing.DailyAverage.Valid || !ing.DailyAverage.Decimal.Equal(avg) {
		t.Fatalf("SetDailyAverage: %v %v", ing, err)
	}
	ing, err = e.ledger.SetDailyAverage(ctx, "rice", nil)
	if err != nil || ing.DailyAverage.Valid {
		t.Fatalf("clear daily average: %v %v", ing, err)
	}
	if _, err := e.ledger.SetMinThreshold(ctx, "nope", decimal.Zero); !errors.Is(err, ErrIngredientNotFound) {
		t.Fatalf("expected ErrIngredientNotFound, got %v", err)
	}
}

func TestLedgerService_List_CollatesAndFiltersLowStock(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	for _, in := range []IngredientInput{
		{ID: "b", Name: "banana", Unit: "un", Quantity: dec("10"), MinThreshold: dec("2")},
		{ID: "s", Name: "açúcar", Unit: "g", Quantity: dec("100"), MinThreshold: dec("100")},
		{ID: "a", Name: "abacate", Unit: "un", Quantity: dec("1"), MinThreshold: dec("3")},
	} {
		if _, err := e.ledger.Create(ctx, in); err != nil {
			t.Fatalf("Create %s: %v", in.ID, err)
		}
	}

	all, err := e.ledger.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := []string{all[0].ID, all[1].ID, all[2].ID}
	if got[0] != "a" || got[1] != "s" || got[2] != "b" {
		t.Fatalf("unexpected order %v", got)
	}

	low, err := e.ledger.ListLowStock(ctx)
	if err != nil {
		t.Fatalf("ListLowStock: %v", err)
	}
	if len(low) != 2 || low[0].ID != "a" || low[1].ID != "s" {
		t.Fatalf("unexpected low stock %+v", low)
	}
}

func TestLedgerService_BestEffortModeStillClamps(t *testing.T) {
	db := newSvcDB(t)
	l := NewLedgerService(db, config.LedgerBestEffort, nil)
	seedIngredient(t, db, "egg", "3", "0")
	ing, err := l.Adjust(context.Background(), "egg", dec("-5"))
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if !ing.Quantity.IsZero() {
		t.Fatalf("want 0, got %s", ing.Quantity)
	}
}

func TestLedgerService_ConcurrentAdjustsKeepEveryUpdate(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	seedIngredient(t, e.db, "rice", "100", "0")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.ledger.Adjust(ctx, "rice", dec("-1")); err != nil {
				t.Errorf("Adjust: %v", err)
			}
		}()
	}
	wg.Wait()

	if q := ingredientQty(t, e.db, "rice"); !q.Equal(dec("50")) {
		t.Fatalf("rice = %s, want 50", q)
	}
}

func TestLedgerService_RowLocksFollowMode(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=ez dbname=ez sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open dry-run postgres: %v", err)
	}
	var lastSQL string
	if err := db.Callback().Query().After("gorm:query").Register("test:capture_sql", func(tx *gorm.DB) {
		lastSQL = tx.Statement.SQL.String()
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	cases := []struct {
		mode   string
		locked bool
	}{
		{config.LedgerSerialized, true},
		{config.LedgerBestEffort, false},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			lastSQL = ""
			l := NewLedgerService(db, tc.mode, nil)
			if _, err := l.loadForWrite(context.Background(), db, []string{"rice"}); err != nil {
				t.Fatalf("loadForWrite: %v", err)
			}
			if lastSQL == "" {
				t.Fatalf("no query captured")
			}
			if got := strings.Contains(lastSQL, "FOR UPDATE"); got != tc.locked {
				t.Fatalf("mode %s: FOR UPDATE=%v in %q", tc.mode, got, lastSQL)
			}
		})
	}
}
