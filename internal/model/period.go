package model

import (
	"fmt"
	"time"

	"github.com/roach88/fintrack/internal/ir"
)

// Default budget period: the 25th through the 24th of the next month.
const (
	DefaultStartDay = 25
	DefaultEndDay   = 24
)

// Period is a monthly budget window given by its first and last day of
// month. When EndDay is before StartDay the window spans two months.
type Period struct {
	StartDay int `yaml:"start_day" json:"start_day"`
	EndDay   int `yaml:"end_day" json:"end_day"`
}

// DefaultPeriod returns the 25..24 period.
func DefaultPeriod() Period {
	return Period{StartDay: DefaultStartDay, EndDay: DefaultEndDay}
}

// Validate checks both days are within 1..31.
func (p Period) Validate() error {
	if p.StartDay < 1 || p.StartDay > 31 {
		return fmt.Errorf("start day %d out of range 1..31", p.StartDay)
	}
	if p.EndDay < 1 || p.EndDay > 31 {
		return fmt.Errorf("end day %d out of range 1..31", p.EndDay)
	}
	return nil
}

// Query returns the period as the query the API expects on budget and
// period reads.
func (p Period) Query() ir.IRObject {
	return ir.IRObject{
		"start_day": ir.IRInt(p.StartDay),
		"end_day":   ir.IRInt(p.EndDay),
	}
}

// Range returns the window containing now: from the start of its first
// day to the end of its last day, in now's location. Days past the end
// of a short month are clamped to its last day.
func (p Period) Range(now time.Time) (start, end time.Time) {
	year, month, day := now.Date()
	loc := now.Location()

	startMonth := month
	if day < clampDay(year, month, p.StartDay) {
		startMonth--
	}
	start = dayIn(year, startMonth, p.StartDay, loc)

	endMonth := start.Month()
	if p.EndDay < p.StartDay {
		endMonth++
	}
	last := dayIn(start.Year(), endMonth, p.EndDay, loc)
	end = last.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// Contains reports whether t falls in the window containing now.
func (p Period) Contains(now, t time.Time) bool {
	start, end := p.Range(now)
	return !t.Before(start) && !t.After(end)
}

// dayIn returns midnight of day in the given month, normalizing month
// overflow and clamping day to the month's length.
func dayIn(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return first.AddDate(0, 0, clampDay(first.Year(), first.Month(), day)-1)
}

func clampDay(year int, month time.Month, day int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	return min(day, days)
}
