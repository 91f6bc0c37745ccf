// Package services – DeductionService
//
// DeductionService turns one order's line items into ledger deductions.
// Quantities are accumulated per ingredient across every line first, then
// applied, so each ingredient gets exactly one ledger write and one
// consumption event per order no matter how many dishes share it.
//
// The deduction runs in its own transaction after the order is durable.
// Ledger writes, events and the order's deduction_status flip commit
// together; if that fails the order stays pending and RetryPending picks
// it up later.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/observability"
	"github.com/Fredcx/ezmenu/internal/repo"
	"github.com/Fredcx/ezmenu/internal/stock"
)

// DeductionResult summarizes one Apply call.
type DeductionResult struct {
	OrderID        string                    `json:"order_id"`
	AlreadyApplied bool                      `json:"already_applied"`
	Events         []domain.ConsumptionEvent `json:"events"`
	Clamped        int                       `json:"clamped"`
}

// DeductionService applies stock deductions for sent orders.
type DeductionService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Now    func() time.Time
}

var errDeductionRace = errors.New("order deduction applied concurrently")

func (s *DeductionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Apply deducts stock for orderID. It is idempotent: an order whose
// deduction already committed returns AlreadyApplied without writes.
// An order whose items are all untracked is marked applied with no ledger
// or event writes.
func (s *DeductionService) Apply(ctx context.Context, orderID string) (*DeductionResult, error) {
	ctx, span := otel.Tracer("services/DeductionService").Start(ctx, "Apply",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := repo.GetOrder(ctx, s.DB, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	res := &DeductionResult{OrderID: orderID, Events: []domain.ConsumptionEvent{}}
	if order.DeductionStatus == domain.DeductionApplied {
		res.AlreadyApplied = true
		observability.StockDeductions.WithLabelValues("already_applied").Inc()
		return res, nil
	}

	deltas, err := s.accumulate(ctx, order.Items)
	if err != nil {
		return nil, err
	}
	at := s.now()

	if len(deltas) == 0 {
		if _, err := repo.MarkOrderDeducted(ctx, s.DB, orderID, at); err != nil {
			return nil, &PersistenceError{Op: "deduct", Err: err}
		}
		observability.StockDeductions.WithLabelValues("skipped").Inc()
		return res, nil
	}

	unlock := s.Ledger.lockDeductions(deltas)
	var applied deductResult
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		applied, err = s.Ledger.applyDeductions(ctx, tx, orderID, deltas, at)
		if err != nil {
			return err
		}
		ok, err := repo.MarkOrderDeducted(ctx, tx, orderID, at)
		if err != nil {
			return err
		}
		if !ok {
			return errDeductionRace
		}
		return nil
	})
	unlock()

	switch {
	case errors.Is(err, errDeductionRace), errors.Is(err, repo.ErrDuplicate):
		res.AlreadyApplied = true
		observability.StockDeductions.WithLabelValues("already_applied").Inc()
		return res, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "deduction failed")
		observability.StockDeductions.WithLabelValues("failed").Inc()
		return nil, &PersistenceError{Op: "deduct", Err: err}
	}

	observability.StockDeductions.WithLabelValues("applied").Inc()
	observability.ConsumptionEvents.Add(float64(len(applied.Events)))
	observability.IngredientClamped.Add(float64(applied.Clamped))

	res.Events = applied.Events
	res.Clamped = applied.Clamped
	s.Ledger.notifyChange(ctx, applied.Updated)
	return res, nil
}

// RetryPending re-applies deductions of up to limit pending orders and
// returns how many it completed. Individual failures are logged and left
// pending for the next pass.
func (s *DeductionService) RetryPending(ctx context.Context, limit int) (int, error) {
	ctx, span := otel.Tracer("services/DeductionService").Start(ctx, "RetryPending")
	defer span.End()

	orders, err := repo.ListPendingDeductions(ctx, s.DB, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := s.Apply(ctx, o.ID); err != nil {
			log.Error().Err(err).Str("order_id", o.ID).Str("table_id", o.TableID).Msg("deduction retry failed")
			continue
		}
		done++
	}
	span.SetAttributes(attribute.Int("orders.pending", len(orders)), attribute.Int("orders.applied", done))
	return done, nil
}

func (s *DeductionService) accumulate(ctx context.Context, items []domain.SentLineItem) ([]stock.Delta, error) {
	lines := make([]stock.Line, 0, len(items))
	itemIDs := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, stock.Line{ItemID: it.ItemID, Quantity: it.Quantity})
		itemIDs = append(itemIDs, it.ItemID)
	}
	recipes, err := repo.GetRecipes(ctx, s.DB, itemIDs)
	if err != nil {
		return nil, err
	}
	return stock.Accumulate(lines, func(itemID string) []stock.Requirement {
		return toRequirements(recipes[itemID])
	}), nil
}
