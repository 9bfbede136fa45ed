package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Weekdays is the set of days an alarm is active on, 0 = Sunday.
// Order is irrelevant; Normalize sorts and removes duplicates.
type Weekdays []time.Weekday

// Presets offered when creating an alarm.
var (
	EveryDay     = Weekdays{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	WorkingDays  = Weekdays{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	WeekendDays  = Weekdays{time.Sunday, time.Saturday}
	weekdayShort = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
)

// Validate checks that every day is in 0..6.
func (w Weekdays) Validate() error {
	for _, d := range w {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("weekday %d out of range 0-6", int(d))
		}
	}
	return nil
}

// Normalize returns a sorted copy without duplicates.
func (w Weekdays) Normalize() Weekdays {
	out := slices.Clone(w)
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether d is in the set.
func (w Weekdays) Contains(d time.Weekday) bool {
	return slices.Contains(w, d)
}

// Ints returns the days as plain integers for storage.
func (w Weekdays) Ints() []int {
	out := make([]int, len(w))
	for i, d := range w {
		out[i] = int(d)
	}
	return out
}

// WeekdaysFromInts builds a set from stored integers.
func WeekdaysFromInts(days []int) Weekdays {
	out := make(Weekdays, len(days))
	for i, d := range days {
		out[i] = time.Weekday(d)
	}
	return out
}

// Describe renders the set for display: "Every day", "Weekdays" or a day list.
func (w Weekdays) Describe() string {
	n := w.Normalize()
	if len(n) == 7 {
		return "Every day"
	}
	if len(n) == 5 && !n.Contains(time.Sunday) && !n.Contains(time.Saturday) {
		return "Weekdays"
	}
	names := make([]string, 0, len(n))
	for _, d := range n {
		if d >= time.Sunday && d <= time.Saturday {
			names = append(names, weekdayShort[d])
		}
	}
	return strings.Join(names, ", ")
}

// ParseWeekdays reads a preset name ("every_day", "weekdays", "weekends") or
// a comma separated list of day numbers (0 = Sunday) or short names.
func ParseWeekdays(s string) (Weekdays, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, fmt.Errorf("%w: select at least one day", ErrValidation)
	case "every_day", "everyday", "daily":
		return slices.Clone(EveryDay), nil
	case "weekdays", "working_days":
		return slices.Clone(WorkingDays), nil
	case "weekends", "weekend":
		return slices.Clone(WeekendDays), nil
	}

	var out Weekdays
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := parseWeekday(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: select at least one day", ErrValidation)
	}
	return out.Normalize(), nil
}

func parseWeekday(s string) (time.Weekday, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: weekday %d out of range 0-6", ErrValidation, n)
		}
		return time.Weekday(n), nil
	}
	if len(s) >= 3 {
		prefix := strings.ToLower(s[:3])
		for i, name := range weekdayShort {
			if strings.ToLower(name) == prefix {
				return time.Weekday(i), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrValidation, s)
}
