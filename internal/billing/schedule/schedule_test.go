package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClampDayOfMonth(t *testing.T) {
	require.Equal(t, 31, ClampDayOfMonth(2025, time.January, 31))
	require.Equal(t, 28, ClampDayOfMonth(2025, time.February, 31))
	require.Equal(t, 29, ClampDayOfMonth(2024, time.February, 31))
	require.Equal(t, 30, ClampDayOfMonth(2025, time.April, 31))
	require.Equal(t, 1, ClampDayOfMonth(2025, time.April, 0))
	require.Equal(t, 15, ClampDayOfMonth(2025, time.April, 15))
}

func TestAddMonthsDoesNotSpill(t *testing.T) {
	// Jan 31 plus one month must land on Feb 28, not Mar 2/3.
	base := date(2025, time.January, 31)
	require.Equal(t, date(2025, time.February, 28), AddMonths(base, 1, 31))
	require.Equal(t, date(2025, time.March, 31), AddMonths(base, 2, 31))

	// Leap year February keeps the 29th.
	require.Equal(t, date(2024, time.February, 29), AddMonths(date(2024, time.January, 15), 1, 31))
}

func TestAddMonthsPreservesTimeOfDay(t *testing.T) {
	base := time.Date(2025, time.March, 10, 9, 30, 15, 0, time.UTC)
	got := AddMonths(base, 1, 10)
	require.Equal(t, time.Date(2025, time.April, 10, 9, 30, 15, 0, time.UTC), got)
}

func TestEnumerateMonthlyDates(t *testing.T) {
	start := date(2025, time.January, 15)
	dates := EnumerateMonthlyDates(start, nil, 15, date(2025, time.January, 1), date(2025, time.April, 30))
	require.Equal(t, []time.Time{
		date(2025, time.January, 15),
		date(2025, time.February, 15),
		date(2025, time.March, 15),
		date(2025, time.April, 15),
	}, dates)
}

func TestEnumerateMonthlyDatesClampsShortMonths(t *testing.T) {
	start := date(2025, time.January, 31)
	dates := EnumerateMonthlyDates(start, nil, 31, date(2025, time.January, 1), date(2025, time.April, 30))
	require.Equal(t, []time.Time{
		date(2025, time.January, 31),
		date(2025, time.February, 28),
		date(2025, time.March, 31),
		date(2025, time.April, 30),
	}, dates)
}

func TestEnumerateMonthlyDatesRespectsBounds(t *testing.T) {
	start := date(2025, time.March, 10)
	end := date(2025, time.May, 10)

	// Months before the schedule start yield nothing.
	dates := EnumerateMonthlyDates(start, &end, 10, date(2025, time.January, 1), date(2025, time.December, 31))
	require.Equal(t, []time.Time{
		date(2025, time.March, 10),
		date(2025, time.April, 10),
		date(2025, time.May, 10),
	}, dates)

	// An occurrence in start's month but before start's day is excluded.
	lateStart := date(2025, time.March, 20)
	dates = EnumerateMonthlyDates(lateStart, nil, 10, date(2025, time.March, 1), date(2025, time.April, 30))
	require.Equal(t, []time.Time{date(2025, time.April, 10)}, dates)
}

func TestEnumerateMonthlyDatesInvertedWindow(t *testing.T) {
	dates := EnumerateMonthlyDates(date(2025, time.January, 1), nil, 1, date(2025, time.June, 1), date(2025, time.January, 1))
	require.Empty(t, dates)
}

func TestEnumerateMonthlyDatesYearBoundary(t *testing.T) {
	start := date(2025, time.November, 5)
	dates := EnumerateMonthlyDates(start, nil, 5, date(2025, time.November, 1), date(2026, time.February, 28))
	require.Equal(t, []time.Time{
		date(2025, time.November, 5),
		date(2025, time.December, 5),
		date(2026, time.January, 5),
		date(2026, time.February, 5),
	}, dates)
}
