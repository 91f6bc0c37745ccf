package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/Fredcx/ezmenu/internal/analytics"
	"github.com/Fredcx/ezmenu/internal/repo"
)

// AnalyticsService derives consumption reports from the event log.
type AnalyticsService struct {
	DB       *gorm.DB
	Location *time.Location // calendar used for day buckets
	MaxDays  int
	Now      func() time.Time
}

// Report aggregates the events of the trailing days calendar days, today
// included. days must be within [1, MaxDays].
func (s *AnalyticsService) Report(ctx context.Context, days int) (*analytics.Report, error) {
	ctx, span := otel.Tracer("services/AnalyticsService").Start(ctx, "Report")
	defer span.End()
	span.SetAttributes(attribute.Int("window.days", days))

	maxDays := s.MaxDays
	if maxDays <= 0 {
		maxDays = 365
	}
	if days < 1 || days > maxDays {
		return nil, validationf("days must be between 1 and %d", maxDays)
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	from := analytics.WindowStart(now, days, s.Location)

	rows, err := repo.ListConsumptionEventsSince(ctx, s.DB, from)
	if err != nil {
		return nil, err
	}
	events := make([]analytics.Event, len(rows))
	for i, r := range rows {
		events[i] = analytics.Event{IngredientID: r.IngredientID, Amount: r.Amount, Timestamp: r.Timestamp}
	}

	ings, err := repo.ListIngredients(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	info := make(map[string]analytics.IngredientInfo, len(ings))
	for _, ing := range ings {
		inf := analytics.IngredientInfo{Name: ing.Name, Unit: ing.Unit}
		if ing.DailyAverage.Valid {
			avg := ing.DailyAverage.Decimal
			inf.DailyAverage = &avg
		}
		info[ing.ID] = inf
	}

	rep := analytics.Build(events, info, analytics.Options{Days: days, Now: now, Location: s.Location})
	span.SetAttributes(attribute.Int("events", len(events)), attribute.Int("alerts", len(rep.Alerts)))
	return &rep, nil
}
