package scheduler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed standard 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
//   - "0 20 * * 0"   every Sunday at 20:00
//   - "*/15 * * * *" every 15 minutes
//   - "0 9 1 * *"    first day of the month at 09:00
//
// As in classic cron, when both day fields are restricted a time matches
// if either of them matches.
type CronExpression struct {
	raw      string
	minutes  []int
	hours    []int
	days     []int
	months   []int
	weekdays []int

	daysAny     bool
	weekdaysAny bool
}

var _ Schedule = (*CronExpression)(nil)

// ParseCronExpression parses a cron expression.
// Supports *, */n, n, n-m, n-m/s and comma lists of those.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{
		raw:         strings.Join(fields, " "),
		daysAny:     fields[2] == "*",
		weekdaysAny: fields[4] == "*",
	}

	specs := []struct {
		name     string
		dst      *[]int
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 7},
	}
	for i, spec := range specs {
		values, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = values
	}

	// 7 is an alias for Sunday.
	if slices.Contains(ce.weekdays, 7) {
		ce.weekdays = slices.DeleteFunc(ce.weekdays, func(v int) bool { return v == 7 })
		if !slices.Contains(ce.weekdays, 0) {
			ce.weekdays = append([]int{0}, ce.weekdays...)
		}
	}
	return ce, nil
}

// MustParseCronExpression panics on an invalid expression.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

func parseField(field string, min, max int) ([]int, error) {
	var result []int
	for _, part := range strings.Split(field, ",") {
		values, err := parsePart(part, min, max)
		if err != nil {
			return nil, err
		}
		result = append(result, values...)
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}

func parsePart(part string, min, max int) ([]int, error) {
	rangePart, step := part, 1
	if i := strings.IndexByte(part, '/'); i >= 0 {
		s, err := strconv.Atoi(part[i+1:])
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("invalid step in %q", part)
		}
		rangePart, step = part[:i], s
	}

	start, end := min, max
	switch {
	case rangePart == "*":
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)
		var err error
		if start, err = atoiInRange(bounds[0], min, max); err != nil {
			return nil, err
		}
		if end, err = atoiInRange(bounds[1], min, max); err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid range %q", rangePart)
		}
	default:
		v, err := atoiInRange(rangePart, min, max)
		if err != nil {
			return nil, err
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	var out []int
	for v := start; v <= end; v += step {
		out = append(out, v)
	}
	return out, nil
}

func atoiInRange(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return v, nil
}

// String returns the normalized expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after the given time,
// in the location of after. Zero time if nothing matches within 5 years.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !slices.Contains(ce.months, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !ce.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !slices.Contains(ce.hours, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if !slices.Contains(ce.minutes, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

func (ce *CronExpression) dayMatches(t time.Time) bool {
	dom := slices.Contains(ce.days, t.Day())
	dow := slices.Contains(ce.weekdays, int(t.Weekday()))
	switch {
	case ce.daysAny && ce.weekdaysAny:
		return true
	case ce.daysAny:
		return dow
	case ce.weekdaysAny:
		return dom
	default:
		return dom || dow
	}
}
