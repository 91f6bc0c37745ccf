package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/domain"
	"github.com/Fredcx/ezmenu/internal/repo"
)

// KitchenService exposes the sent items to the kitchen and advances them
// through sent → preparing → ready → completed.
type KitchenService struct {
	DB       *gorm.DB
	Notifier Notifier
}

func (s *KitchenService) tracer() trace.Tracer { return otel.Tracer("services/KitchenService") }

// ListItems returns live (non-archived) sent items, optionally filtered by
// status. Unknown status names yield ErrValidation.
func (s *KitchenService) ListItems(ctx context.Context, statuses []string) ([]domain.SentLineItem, error) {
	ctx, span := s.tracer().Start(ctx, "ListItems")
	defer span.End()

	filter := make([]domain.ItemStatus, 0, len(statuses))
	for _, raw := range statuses {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		st, ok := domain.ParseItemStatus(raw)
		if !ok {
			return nil, validationf("unknown status %q", raw)
		}
		filter = append(filter, st)
	}
	return repo.ListKitchenItems(ctx, s.DB, filter)
}

// UpdateStatus moves one sent item to status. The write is conditional on
// the status read, so two cooks racing on the same item cannot both win.
func (s *KitchenService) UpdateStatus(ctx context.Context, itemID, status string) (*domain.SentLineItem, error) {
	ctx, span := s.tracer().Start(ctx, "UpdateStatus", trace.WithAttributes(
		attribute.String("item.id", itemID),
		attribute.String("item.status", status),
	))
	defer span.End()

	to, ok := domain.ParseItemStatus(strings.TrimSpace(status))
	if !ok {
		return nil, validationf("unknown status %q", status)
	}
	it, err := repo.GetSentItem(ctx, s.DB, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrLineNotFound
	}
	if err != nil {
		return nil, err
	}
	if !it.Status.CanTransition(to) {
		return nil, ErrInvalidTransition
	}
	updated, err := repo.UpdateSentItemStatus(ctx, s.DB, it.ID, it.Status, to)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrInvalidTransition
	}
	it.Status = to
	publish(s.Notifier, TableTopic(it.TableID), EventItemStatus, it)
	return it, nil
}
