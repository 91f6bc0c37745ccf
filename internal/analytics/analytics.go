// Package analytics turns the consumption event log into reports: events in
// a trailing window of calendar days are bucketed by local date, summed per
// ingredient, compared against each ingredient's configured daily average,
// and rolled up into a period summary. The busiest day is the one with the
// most distinct ingredients consumed.
//
// Build is pure; it never reads or writes storage.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the format of Day.Date.
const DateLayout = "2006-01-02"

// Event is the subset of a consumption event the report needs.
type Event struct {
	IngredientID string
	Amount       decimal.Decimal
	Timestamp    time.Time
}

// IngredientInfo carries display fields and the alert threshold of an
// ingredient. DailyAverage is nil when none is configured.
type IngredientInfo struct {
	Name         string
	Unit         string
	DailyAverage *decimal.Decimal
}

// Options controls the reporting window.
type Options struct {
	Days     int            // trailing calendar days, today included
	Now      time.Time      // reference instant
	Location *time.Location // zone whose calendar defines a day; UTC when nil
}

// Entry is one ingredient's total within a day or the whole period.
type Entry struct {
	IngredientID  string           `json:"ingredient_id"`
	Name          string           `json:"name,omitempty"`
	Unit          string           `json:"unit,omitempty"`
	Total         decimal.Decimal  `json:"total"`
	DailyAverage  *decimal.Decimal `json:"daily_average,omitempty"`
	IsOverAverage bool             `json:"is_over_average"`
}

// Day is one calendar-date bucket.
type Day struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
}

// Alert flags an ingredient whose consumption on a given day exceeded its
// daily average.
type Alert struct {
	Date         string          `json:"date"`
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name,omitempty"`
	Total        decimal.Decimal `json:"total"`
	DailyAverage decimal.Decimal `json:"daily_average"`
}

// Report is the derived view over one window.
type Report struct {
	WindowDays int       `json:"window_days"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Days       []Day     `json:"days"`
	BusiestDay *Day      `json:"busiest_day,omitempty"`
	Period     []Entry   `json:"period"`
	Alerts     []Alert   `json:"alerts"`
}

// WindowStart returns the first instant included in a window of days
// calendar days ending with the local day of now.
func WindowStart(now time.Time, days int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if days < 1 {
		days = 1
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, -(days - 1))
}

// Build aggregates events into a Report. Events outside [WindowStart, Now]
// are ignored. Days are ordered newest first and entries within a day by
// ingredient ID; the period summary is ordered by total descending.
func Build(events []Event, info map[string]IngredientInfo, opt Options) Report {
	loc := opt.Location
	if loc == nil {
		loc = time.UTC
	}
	from := WindowStart(opt.Now, opt.Days, loc)
	rep := Report{
		WindowDays: opt.Days,
		From:       from,
		To:         opt.Now.In(loc),
		Days:       []Day{},
		Period:     []Entry{},
		Alerts:     []Alert{},
	}

	byDay := make(map[string]map[string]decimal.Decimal)
	period := make(map[string]decimal.Decimal)
	for _, ev := range events {
		if ev.Timestamp.Before(from) || ev.Timestamp.After(opt.Now) {
			continue
		}
		date := ev.Timestamp.In(loc).Format(DateLayout)
		bucket, ok := byDay[date]
		if !ok {
			bucket = make(map[string]decimal.Decimal)
			byDay[date] = bucket
		}
		bucket[ev.IngredientID] = bucket[ev.IngredientID].Add(ev.Amount)
		period[ev.IngredientID] = period[ev.IngredientID].Add(ev.Amount)
	}

	dates := make([]string, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	// Layout sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	busiest := -1
	for _, date := range dates {
		day := Day{Date: date, Entries: make([]Entry, 0, len(byDay[date]))}
		for id, total := range byDay[date] {
			e := newEntry(id, total, info[id])
			if e.IsOverAverage {
				rep.Alerts = append(rep.Alerts, Alert{
					Date:         date,
					IngredientID: id,
					Name:         e.Name,
					Total:        total,
					DailyAverage: *e.DailyAverage,
				})
			}
			day.Entries = append(day.Entries, e)
		}
		sort.Slice(day.Entries, func(i, j int) bool { return day.Entries[i].IngredientID < day.Entries[j].IngredientID })
		rep.Days = append(rep.Days, day)
		// Strictly greater keeps the most recent date on ties.
		if busiest < 0 || len(day.Entries) > len(rep.Days[busiest].Entries) {
			busiest = len(rep.Days) - 1
		}
	}
	if busiest >= 0 {
		b := rep.Days[busiest]
		rep.BusiestDay = &b
	}

	sort.SliceStable(rep.Alerts, func(i, j int) bool {
		if rep.Alerts[i].Date != rep.Alerts[j].Date {
			return rep.Alerts[i].Date > rep.Alerts[j].Date
		}
		return rep.Alerts[i].IngredientID < rep.Alerts[j].IngredientID
	})

	for id, total := range period {
		e := newEntry(id, total, info[id])
		// Alerts are per day; the period rollup only carries the total.
		e.IsOverAverage = false
		rep.Period = append(rep.Period, e)
	}
	sort.Slice(rep.Period, func(i, j int) bool {
		if c := rep.Period[i].Total.Cmp(rep.Period[j].Total); c != 0 {
			return c > 0
		}
		return rep.Period[i].IngredientID < rep.Period[j].IngredientID
	})
	return rep
}

func newEntry(id string, total decimal.Decimal, inf IngredientInfo) Entry {
	e := Entry{
		IngredientID: id,
		Name:         inf.Name,
		Unit:         inf.Unit,
		Total:        total,
		DailyAverage: inf.DailyAverage,
	}
	if inf.DailyAverage != nil && total.GreaterThan(*inf.DailyAverage) {
		e.IsOverAverage = true
	}
	return e
}
