package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression_FieldForms(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		minutes []int
	}{
		{"wildcard step", "*/15 * * * *", []int{0, 15, 30, 45}},
		{"single value", "30 * * * *", []int{30}},
		{"range", "5-8 * * * *", []int{5, 6, 7, 8}},
		{"list", "1,20,59 * * * *", []int{1, 20, 59}},
		{"range with step", "0-30/10 * * * *", []int{0, 10, 20, 30}},
		{"mixed list", "1,10-12,*/30 * * * *", []int{0, 1, 10, 11, 12, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.minutes, ce.minutes)
			assert.Equal(t, tt.expr, ce.String())
		})
	}
}

func TestParseCronExpression_Invalid(t *testing.T) {
	invalid := []string{
		"* * * *",       // too few fields
		"* * * * * *",   // too many fields
		"60 * * * *",    // minute out of range
		"* 24 * * *",    // hour out of range
		"* * * * 7",     // weekday out of range
		"x * * * *",     // not a number
		"*/0 * * * *",   // zero step
		"8-3 * * * *",   // inverted range
		"* * * * * bad", // garbage
	}

	for _, expr := range invalid {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expression %q should not parse", expr)
	}
}

func TestCronExpression_Next(t *testing.T) {
	// Tuesday 2026-01-06 14:37 UTC.
	base := time.Date(2026, 1, 6, 14, 37, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{EveryMinute, time.Date(2026, 1, 6, 14, 38, 0, 0, time.UTC)},
		{Every5Minutes, time.Date(2026, 1, 6, 14, 40, 0, 0, time.UTC)},
		{EveryHour, time.Date(2026, 1, 6, 15, 0, 0, 0, time.UTC)},
		{EveryDay21PM, time.Date(2026, 1, 6, 21, 0, 0, 0, time.UTC)},
		{EveryDayMidnight, time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)},
		{EverySunday, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)},
		{FirstOfMonth, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce := MustParseCronExpression(tt.expr)
			assert.Equal(t, tt.want, ce.Next(base))
		})
	}
}

func TestCronExpression_NextSkipsCurrentMinute(t *testing.T) {
	ce := MustParseCronExpression("30 14 * * *")

	// Exactly at the match: next fire is tomorrow, not now.
	at := time.Date(2026, 1, 6, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC), ce.Next(at))
}

func TestMustParseCronExpression_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { MustParseCronExpression("not a cron") })
}

func TestCronExpression_DayOrWeekdaySemantics(t *testing.T) {
	// Both fields restricted: fires on the 15th OR on Sundays.
	ce := MustParseCronExpression("0 0 15 * 0")

	// Thursday 2026-01-08.
	base := time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)

	// Sunday the 11th comes before the 15th.
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), ce.Next(base))

	// From Monday the 12th, the 15th (a Thursday) is next.
	fromMonday := time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), ce.Next(fromMonday))
}

func TestCronExpression_ImplementsSchedule(t *testing.T) {
	var s Schedule = MustParseCronExpression(EveryDay21PM)
	assert.Equal(t, EveryDay21PM, s.String())
}
