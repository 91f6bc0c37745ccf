package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/catalog"
	"github.com/Fredcx/ezmenu/internal/repo"
	"github.com/Fredcx/ezmenu/internal/services"
)

const retryBatch = 100

// seedCatalog upserts every catalog entry into menu_items.
func seedCatalog(ctx context.Context, db *gorm.DB, path string) error {
	items, err := catalog.Load(path)
	if err != nil {
		return err
	}
	for i := range items {
		if err := repo.UpsertMenuItem(ctx, db, &items[i]); err != nil {
			return err
		}
	}
	log.Info().Int("items", len(items)).Str("path", path).Msg("menu catalog loaded")
	return nil
}

// runDeductionRetry re-applies pending stock deductions every interval
// until ctx ends. A zero interval disables it.
func runDeductionRetry(ctx context.Context, d *services.DeductionService, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := d.RetryPending(ctx, retryBatch)
			if err != nil {
				log.Warn().Err(err).Msg("deduction retry failed")
				continue
			}
			if n > 0 {
				log.Info().Int("applied", n).Msg("pending deductions applied")
			}
		}
	}
}

// runIdempotencyPurge drops expired idempotency records every interval.
func runIdempotencyPurge(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired idempotency keys removed")
			}
		}
	}
}
