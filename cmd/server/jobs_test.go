package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Fredcx/ezmenu/internal/repo"
	"github.com/Fredcx/ezmenu/internal/services"
)

func newJobsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:jobs_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
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

func TestSeedCatalog(t *testing.T) {
	db := newJobsDB(t)
	path := filepath.Join(t.TempDir(), "menu.yaml")
	doc := `items:
  - id: sushi-salmon
    name: Sushi de salmão
    category: rodizio
    price: "0"
  - id: coke
    name: Coca-Cola
    category: drinks
    price: "7.50"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx := context.Background()
	// Seeding twice is an upsert, not a duplicate.
	for i := 0; i < 2; i++ {
		if err := seedCatalog(ctx, db, path); err != nil {
			t.Fatalf("seed #%d: %v", i, err)
		}
	}
	items, err := repo.ListMenuItems(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("want 2 items, got %d", len(items))
	}

	if err := seedCatalog(ctx, db, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing catalog")
	}
}

func TestBackgroundJobs_StopOnCancel(t *testing.T) {
	db := newJobsDB(t)
	ded := &services.DeductionService{DB: db, Ledger: services.NewLedgerService(db, "", nil)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { runDeductionRetry(ctx, ded, 5*time.Millisecond); done <- struct{}{} }()
	go func() { runIdempotencyPurge(ctx, db, 5*time.Millisecond); done <- struct{}{} }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("job did not stop")
		}
	}
}

func TestRunDeductionRetry_DisabledReturns(t *testing.T) {
	finished := make(chan struct{})
	go func() {
		runDeductionRetry(context.Background(), nil, 0)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("zero interval should return immediately")
	}
}
