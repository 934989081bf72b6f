package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron spec
// (minute hour day-of-month month day-of-week) implementing Schedule.
//
//	"0 21 * * *"  - каждый день в 21:00 (ночной снапшот)
//	"*/5 * * * *" - каждые 5 минут
type CronExpression struct {
	raw      string
	minutes  []int
	hours    []int
	days     []int
	months   []int
	weekdays []int

	// Standard cron semantics: when both day-of-month and day-of-week
	// are restricted, a time matches if EITHER does.
	anyDay     bool
	anyWeekday bool
}

// Common presets.
const (
	EveryMinute      = "* * * * *"
	Every5Minutes    = "*/5 * * * *"
	EveryHour        = "0 * * * *"
	EveryDay21PM     = "0 21 * * *"
	EveryDayMidnight = "0 0 * * *"
	EverySunday      = "0 0 * * 0"
	FirstOfMonth     = "0 0 1 * *"
)

type cronField struct {
	name string
	min  int
	max  int
}

var cronFields = [5]cronField{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day", 1, 31},
	{"month", 1, 12},
	{"weekday", 0, 6},
}

// ParseCronExpression parses a 5-field cron expression. Each field accepts
// "*", "n", "n-m", "*/s", "n-m/s" and comma lists of any of those.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != len(cronFields) {
		return nil, fmt.Errorf("invalid cron expression: expected %d fields, got %d", len(cronFields), len(fields))
	}

	parsed := make([][]int, len(cronFields))
	for i, spec := range cronFields {
		values, err := parseCronField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		parsed[i] = values
	}

	return &CronExpression{
		raw:        expr,
		minutes:    parsed[0],
		hours:      parsed[1],
		days:       parsed[2],
		months:     parsed[3],
		weekdays:   parsed[4],
		anyDay:     fields[2] == "*",
		anyWeekday: fields[4] == "*",
	}, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

// parseCronField expands one field into a sorted set of values. Comma lists
// are split first, so mixed terms like "1,10-15,*/20" work.
func parseCronField(field string, min, max int) ([]int, error) {
	seen := make(map[int]bool)

	for _, term := range strings.Split(field, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			return nil, fmt.Errorf("empty term in %q", field)
		}
		if err := expandCronTerm(term, min, max, seen); err != nil {
			return nil, err
		}
	}

	result := make([]int, 0, len(seen))
	for v := range seen {
		result = append(result, v)
	}
	sort.Ints(result)
	return result, nil
}

// expandCronTerm handles a single term: "*", "n", "n-m", with optional "/s".
func expandCronTerm(term string, min, max int, into map[int]bool) error {
	step := 1
	if base, stepStr, found := strings.Cut(term, "/"); found {
		s, err := strconv.Atoi(stepStr)
		if err != nil || s <= 0 {
			return fmt.Errorf("invalid step value: %q", stepStr)
		}
		term, step = base, s
	}

	start, end := min, max
	switch {
	case term == "*":
		// full range
	case strings.Contains(term, "-"):
		lo, hi, _ := strings.Cut(term, "-")
		var err error
		if start, err = strconv.Atoi(lo); err != nil {
			return fmt.Errorf("invalid range start: %q", lo)
		}
		if end, err = strconv.Atoi(hi); err != nil {
			return fmt.Errorf("invalid range end: %q", hi)
		}
		if start > end {
			return fmt.Errorf("range start %d after end %d", start, end)
		}
	default:
		v, err := strconv.Atoi(term)
		if err != nil {
			return fmt.Errorf("invalid value: %q", term)
		}
		if step == 1 {
			if v < min || v > max {
				return fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
			}
			into[v] = true
			return nil
		}
		// "n/s" means every s-th value starting at n
		start = v
	}

	if start < min || end > max {
		return fmt.Errorf("range [%d-%d] outside [%d-%d]", start, end, min, max)
	}
	for v := start; v <= end; v += step {
		into[v] = true
	}
	return nil
}

// String returns the original expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching time strictly after t, truncated to the
// minute. A valid expression always matches within a year.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	deadline := t.AddDate(1, 0, 1)

	for t.Before(deadline) {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	if !inSet(ce.minutes, t.Minute()) ||
		!inSet(ce.hours, t.Hour()) ||
		!inSet(ce.months, int(t.Month())) {
		return false
	}

	dayOK := inSet(ce.days, t.Day())
	weekdayOK := inSet(ce.weekdays, int(t.Weekday()))
	if !ce.anyDay && !ce.anyWeekday {
		return dayOK || weekdayOK
	}
	return dayOK && weekdayOK
}

func inSet(values []int, v int) bool {
	i := sort.SearchInts(values, v)
	return i < len(values) && values[i] == v
}
