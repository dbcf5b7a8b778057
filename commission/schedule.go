package commission

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// WINDOW - A closed range of calendar days
// =============================================================================

// Window is a date range [Start, End], both inclusive, in UTC days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t falls on a day within the window.
func (w Window) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days is the number of calendar days in the window.
func (w Window) Days() int { return daysBetween(w.Start, w.End) + 1 }

func (w Window) String() string {
	return "[" + w.Start.Format(time.DateOnly) + ", " + w.End.Format(time.DateOnly) + "]"
}

// Next returns the window that follows this one under the same schedule.
func (s PaySchedule) Next(w Window, anchor time.Time) Window {
	return s.PeriodFor(w.End.AddDate(0, 0, 1), anchor)
}

// =============================================================================
// PAY SCHEDULE - How implicit pay periods are cut
// =============================================================================

// PaySchedule defines how settlement cuts pay periods when it has to create
// one.
type PaySchedule string

const (
	ScheduleWeekly      PaySchedule = "weekly"      // 7 days from the anchor
	ScheduleBiweekly    PaySchedule = "biweekly"    // 14 days from the anchor
	ScheduleSemiMonthly PaySchedule = "semimonthly" // 1st-15th, 16th-end of month
	ScheduleMonthly     PaySchedule = "monthly"     // calendar month
)

// DefaultScheduleAnchor is a Monday, so weekly and biweekly periods run
// Monday through Sunday.
var DefaultScheduleAnchor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseSchedule accepts a schedule name, case-insensitively.
func ParseSchedule(s string) (PaySchedule, error) {
	switch p := PaySchedule(strings.ToLower(strings.TrimSpace(s))); p {
	case ScheduleWeekly, ScheduleBiweekly, ScheduleSemiMonthly, ScheduleMonthly:
		return p, nil
	}
	return "", invalid("schedule", "unknown pay schedule %q (want weekly, biweekly, semimonthly or monthly)", s)
}

// PeriodFor returns the window that contains the given date.
// The anchor only matters for weekly and biweekly schedules.
func (s PaySchedule) PeriodFor(date, anchor time.Time) Window {
	d := DateOf(date)
	switch s {
	case ScheduleWeekly:
		return fixedLengthWindow(d, DateOf(anchor), 7)

	case ScheduleSemiMonthly:
		if d.Day() <= 15 {
			start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
			return Window{Start: start, End: start.AddDate(0, 0, 14)}
		}
		start := time.Date(d.Year(), d.Month(), 16, 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: endOfMonth(d)}

	case ScheduleMonthly:
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: endOfMonth(d)}

	default:
		return fixedLengthWindow(d, DateOf(anchor), 14)
	}
}

func fixedLengthWindow(d, anchor time.Time, length int) Window {
	offset := floorDiv(daysBetween(anchor, d), length) * length
	start := anchor.AddDate(0, 0, offset)
	return Window{Start: start, End: start.AddDate(0, 0, length-1)}
}

func endOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole days from a to b. Both must be UTC midnights.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// String makes PaySchedule usable in flag help and logs.
func (s PaySchedule) String() string { return string(s) }

// describe is used in settlement logs.
func (s PaySchedule) describe(w Window) string {
	return fmt.Sprintf("%s period %s", s, w)
}
