package poller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule decides when the next poll runs.
type Schedule struct {
	cron.Schedule
	// Source is "cron", "duration" or "hhmm".
	Source string
	Raw    string
}

var reHHMM = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

// ParseSchedule accepts:
//   - a Go duration: "10m", "1h30m"
//   - an HH:MM interval: "00:10" is ten minutes
//   - a cron expression: "*/10 * * * *", "@hourly", "@every 10m"
//
// "cron:" and "every:" prefixes force the interpretation.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}
	low := strings.ToLower(s)

	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(raw, strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(raw, strings.TrimSpace(s[len("every:"):]))
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return parseCron(raw, s)
	default:
		return parseInterval(raw, s)
	}
}

func parseCron(raw, expr string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("empty cron expression")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return Schedule{Schedule: sched, Source: "cron", Raw: raw}, nil
}

func parseInterval(raw, v string) (Schedule, error) {
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Schedule{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		return every(raw, d, "hhmm")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Schedule{}, fmt.Errorf(
			"invalid schedule %q (use a duration like '10m', HH:MM like '00:10', or cron like '*/10 * * * *')", raw)
	}
	return every(raw, d, "duration")
}

func every(raw string, d time.Duration, source string) (Schedule, error) {
	// cron.Every rounds down to whole seconds.
	if d < time.Second {
		return Schedule{}, fmt.Errorf("interval must be at least 1s, got %s", d)
	}
	return Schedule{Schedule: cron.Every(d), Source: source, Raw: raw}, nil
}

// Interval returns the fixed spacing for interval schedules and false for cron.
func (s Schedule) Interval() (time.Duration, bool) {
	switch c := s.Schedule.(type) {
	case cron.ConstantDelaySchedule:
		return c.Delay, true
	case fixed:
		return time.Duration(c), true
	}
	return 0, false
}

// FixedSchedule returns a schedule that always waits d. Intended for tests
// and callers that need sub-second spacing.
func FixedSchedule(d time.Duration) Schedule {
	return Schedule{Schedule: fixed(d), Source: "duration", Raw: d.String()}
}

type fixed time.Duration

func (f fixed) Next(t time.Time) time.Time { return t.Add(time.Duration(f)) }
