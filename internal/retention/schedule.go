package retention

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// field matches one column of a cron expression.
type field struct {
	any  bool
	vals map[int]bool
}

func (f field) match(v int) bool { return f.any || f.vals[v] }

// Schedule is a parsed "minute hour day-of-month month day-of-week"
// expression. Each field accepts *, a value, a lo-hi range, a */step or
// lo-hi/step, and comma-separated lists of those.
type Schedule struct {
	minute, hour, dom, month, dow field
}

var bounds = [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}

var fieldNames = [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}

// ParseSchedule parses a five-field cron expression.
func ParseSchedule(expr string) (Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return Schedule{}, fmt.Errorf("retention: cron expression must have 5 fields, got %d", len(parts))
	}
	var fs [5]field
	for i, p := range parts {
		f, err := parseField(p, bounds[i][0], bounds[i][1])
		if err != nil {
			return Schedule{}, fmt.Errorf("retention: %s field: %w", fieldNames[i], err)
		}
		fs[i] = f
	}
	return Schedule{minute: fs[0], hour: fs[1], dom: fs[2], month: fs[3], dow: fs[4]}, nil
}

func parseField(s string, lo, hi int) (field, error) {
	if s == "*" {
		return field{any: true}, nil
	}
	f := field{vals: make(map[int]bool)}
	for _, item := range strings.Split(s, ",") {
		rng, step := item, 1
		if i := strings.IndexByte(item, '/'); i >= 0 {
			n, err := strconv.Atoi(item[i+1:])
			if err != nil || n < 1 {
				return field{}, fmt.Errorf("invalid step in %q", item)
			}
			rng, step = item[:i], n
		}

		from, to := lo, hi
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return field{}, fmt.Errorf("invalid value %q", a)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return field{}, fmt.Errorf("invalid value %q", b)
			}
		default:
			v, err := strconv.Atoi(rng)
			if err != nil {
				return field{}, fmt.Errorf("invalid value %q", rng)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return field{}, fmt.Errorf("%q out of range %d-%d", item, lo, hi)
		}
		for v := from; v <= to; v += step {
			f.vals[v] = true
		}
	}
	return f, nil
}

func (s Schedule) matches(t time.Time) bool {
	return s.minute.match(t.Minute()) &&
		s.hour.match(t.Hour()) &&
		s.dom.match(t.Day()) &&
		s.month.match(int(t.Month())) &&
		s.dow.match(int(t.Weekday()))
}

// Next returns the first minute strictly after t that the schedule matches,
// searching at most one leap year ahead.
func (s Schedule) Next(t time.Time) (time.Time, bool) {
	c := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(366 * 24 * time.Hour)
	for c.Before(limit) {
		if s.matches(c) {
			return c, true
		}
		c = c.Add(time.Minute)
	}
	return time.Time{}, false
}
