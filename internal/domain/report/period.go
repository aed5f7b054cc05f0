package report

import (
	"time"
)

type PeriodKind string

const (
	// PeriodExact is a range inside one calendar month.
	PeriodExact PeriodKind = "EXACT"
	// PeriodYearRange spans several months of the same year.
	PeriodYearRange PeriodKind = "YEAR_RANGE"
	// PeriodCrossYear crosses at least one year boundary.
	PeriodCrossYear PeriodKind = "CROSS_YEAR"
)

// MonthPeriod is the (month, year) window implied by a date range, used to select
// precomputed monthly stats.
type MonthPeriod struct {
	Kind       PeriodKind `json:"kind"`
	StartMonth int        `json:"start_month"`
	StartYear  int        `json:"start_year"`
	EndMonth   int        `json:"end_month"`
	EndYear    int        `json:"end_year"`
}

func ResolveMonthPeriod(start, end time.Time) MonthPeriod {
	p := MonthPeriod{
		StartMonth: int(start.Month()),
		StartYear:  start.Year(),
		EndMonth:   int(end.Month()),
		EndYear:    end.Year(),
	}

	switch {
	case p.StartYear == p.EndYear && p.StartMonth == p.EndMonth:
		p.Kind = PeriodExact
	case p.StartYear == p.EndYear:
		p.Kind = PeriodYearRange
	default:
		p.Kind = PeriodCrossYear
	}
	return p
}

// Contains reports whether a (month, year) pair falls inside the period.
func (p MonthPeriod) Contains(month, year int) bool {
	switch p.Kind {
	case PeriodExact:
		return year == p.StartYear && month == p.StartMonth
	case PeriodYearRange:
		return year == p.StartYear && month >= p.StartMonth && month <= p.EndMonth
	default:
		return (year == p.StartYear && month >= p.StartMonth) ||
			(year > p.StartYear && year < p.EndYear) ||
			(year == p.EndYear && month <= p.EndMonth)
	}
}
