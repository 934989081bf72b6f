package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAlmaty_OffsetFromUTC(t *testing.T) {
	utc := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	local := ToAlmaty(utc)

	// UTC+5: 20:00 UTC is 01:00 the next day in Almaty.
	assert.Equal(t, 1, local.Hour())
	assert.Equal(t, 11, local.Day())
	assert.True(t, utc.Equal(local), "conversion must not shift the instant")
	assert.True(t, ToUTC(local).Equal(utc))
}

func TestStartAndEndOfDay(t *testing.T) {
	// 22:30 UTC on March 10 is already March 11 in Almaty.
	moment := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)

	start := StartOfDay(moment)
	assert.Equal(t, 11, start.Day())
	assert.Equal(t, 0, start.Hour())

	end := EndOfDay(moment)
	assert.Equal(t, 11, end.Day())
	assert.Equal(t, 23, end.Hour())
	assert.True(t, start.Before(end))
}

func TestStartOfWeek_MondayBased(t *testing.T) {
	// 2026-03-11 is a Wednesday.
	wednesday := DateTime(2026, 3, 11, 15, 0, 0)
	monday := StartOfWeek(wednesday)
	assert.Equal(t, time.Monday, monday.Weekday())
	assert.Equal(t, 9, monday.Day())
	assert.Equal(t, 0, monday.Hour())

	// Sunday belongs to the week that started the previous Monday.
	sunday := DateTime(2026, 3, 15, 10, 0, 0)
	assert.Equal(t, 9, StartOfWeek(sunday).Day())

	end := EndOfWeek(wednesday)
	assert.Equal(t, time.Sunday, end.Weekday())
	assert.Equal(t, 15, end.Day())
}

func TestStartAndEndOfMonth(t *testing.T) {
	moment := DateTime(2026, 2, 14, 12, 0, 0)

	start := StartOfMonth(moment)
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, time.February, start.Month())

	end := EndOfMonth(moment)
	assert.Equal(t, 28, end.Day(), "February 2026 has 28 days")
	assert.Equal(t, time.February, end.Month())
}

func TestIsSameDay_AcrossTimezones(t *testing.T) {
	// Both instants fall on March 11 in Almaty.
	a := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	b := DateTime(2026, 3, 11, 23, 0, 0)
	assert.True(t, IsSameDay(a, b))

	c := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	assert.False(t, IsSameDay(a, c))
}

func TestDaysBetween(t *testing.T) {
	a := Date(2026, 3, 1)
	b := Date(2026, 3, 11)

	assert.Equal(t, 10, DaysBetween(a, b))
	assert.Equal(t, 10, DaysBetween(b, a), "order does not matter")
	assert.Equal(t, 0, DaysBetween(a, a))

	// Partial days count by calendar day, not elapsed hours.
	late := DateTime(2026, 3, 1, 23, 59, 0)
	early := DateTime(2026, 3, 2, 0, 1, 0)
	assert.Equal(t, 1, DaysBetween(late, early))
}

func TestFormatAndParseRoundTrip(t *testing.T) {
	moment := DateTime(2026, 3, 11, 9, 30, 0)

	assert.Equal(t, "2026-03-11", FormatDateStr(moment))
	assert.Equal(t, "2026-03-11 09:30", FormatDateTimeStr(moment))

	parsed, err := ParseDateTimeAlmaty("2026-03-11 09:30")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(moment))

	day, err := ParseDateAlmaty("2026-03-11")
	require.NoError(t, err)
	assert.Equal(t, 11, day.Day())
	_, offset := day.Zone()
	assert.Equal(t, 5*60*60, offset)

	_, err = ParseDateAlmaty("11.03.2026")
	assert.Error(t, err)
}

func TestIsTodayAndThisWeek(t *testing.T) {
	now := Now()
	assert.True(t, IsToday(now))
	assert.True(t, IsThisWeek(now))
	assert.False(t, IsToday(now.AddDate(0, 0, -1)))
	assert.True(t, IsYesterday(now.AddDate(0, 0, -1)))
	assert.False(t, IsThisWeek(now.AddDate(0, 0, -8)))

	assert.Equal(t, 3, DaysSince(now.AddDate(0, 0, -3)))
}
