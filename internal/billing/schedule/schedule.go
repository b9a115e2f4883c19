// Package schedule provides pure date arithmetic for monthly recurring
// billing previews. Nothing here touches storage or the rest of the engine.
package schedule

import "time"

// ClampDayOfMonth clamps day into the valid range of the given month, so a
// "bill on the 31st" schedule lands on the 28th/29th/30th in shorter months.
func ClampDayOfMonth(year int, month time.Month, day int) int {
	if day < 1 {
		day = 1
	}
	if last := daysIn(year, month); day > last {
		return last
	}
	return day
}

// AddMonths returns a date count months after base, at the clamped
// dayOfMonth, preserving base's time-of-day and location.
func AddMonths(base time.Time, count int, dayOfMonth int) time.Time {
	// Normalise to the first of the month before shifting so that Go's
	// date arithmetic cannot spill into the following month.
	anchor := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, base.Location()).AddDate(0, count, 0)
	day := ClampDayOfMonth(anchor.Year(), anchor.Month(), dayOfMonth)
	return time.Date(anchor.Year(), anchor.Month(), day,
		base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())
}

// EnumerateMonthlyDates returns every monthly occurrence on dayOfMonth
// whose month falls inside [from, to] at month granularity. Occurrences
// before start, before start's month, or after end (when given) are
// excluded. A window with to before from yields nothing.
func EnumerateMonthlyDates(start time.Time, end *time.Time, dayOfMonth int, from, to time.Time) []time.Time {
	dates := []time.Time{}
	if to.Before(from) {
		return dates
	}
	cursor := monthStart(from)
	if s := monthStart(start); cursor.Before(s) {
		cursor = s
	}
	limit := monthStart(to)
	for !cursor.After(limit) {
		day := ClampDayOfMonth(cursor.Year(), cursor.Month(), dayOfMonth)
		occurrence := time.Date(cursor.Year(), cursor.Month(), day,
			start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
		if !occurrence.Before(start) && (end == nil || !occurrence.After(*end)) {
			dates = append(dates, occurrence)
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	return dates
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
