// Package schedule turns an alarm's weekly rule into concrete fire instants.
// Every function here is pure: the reference time is always a parameter.
package schedule

import (
	"fmt"
	"time"

	"github.com/notexe/habit-alarm/internal/model"
)

// Occurrence is one (alarm, weekday) pairing resolved to its timer pair.
type Occurrence struct {
	Weekday  time.Weekday
	AlarmAt  time.Time
	VerifyAt time.Time
}

// NextFireInstant returns the soonest instant at or after now that falls on
// weekday at tod, in now's location. A same-day target only counts while it
// is strictly after now; otherwise the next occurrence is a week out.
func NextFireInstant(weekday time.Weekday, tod model.TimeOfDay, now time.Time) time.Time {
	days := (int(weekday) - int(now.Weekday()) + 7) % 7

	y, m, d := now.Date()
	candidate := time.Date(y, m, d, tod.Hour, tod.Minute, 0, 0, now.Location())
	if days == 0 && !candidate.After(now) {
		days = 7
	}

	return time.Date(y, m, d+days, tod.Hour, tod.Minute, 0, 0, now.Location())
}

// VerificationInstant offsets an alarm-fire instant by the verification delay.
func VerificationInstant(fire time.Time, delay time.Duration) time.Time {
	return fire.Add(delay)
}

// Occurrences resolves every active weekday of a into its alarm-fire and
// verification instants, ordered by weekday.
func Occurrences(a model.Alarm, now time.Time) ([]Occurrence, error) {
	days := a.Weekdays.Normalize()
	if len(days) == 0 {
		return nil, model.ErrNoWeekdays
	}
	if err := days.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	delay, err := a.Delay()
	if err != nil {
		return nil, err
	}

	out := make([]Occurrence, 0, len(days))
	for _, day := range days {
		fire := NextFireInstant(day, a.Time, now)
		out = append(out, Occurrence{
			Weekday:  day,
			AlarmAt:  fire,
			VerifyAt: VerificationInstant(fire, delay),
		})
	}
	return out, nil
}

// NextWeek returns the same wall-clock instant seven calendar days later.
func NextWeek(t time.Time) time.Time {
	return t.AddDate(0, 0, 7)
}

// Matches reports whether at is an instant a's current rule would arm a
// timer of kind for, judged in loc. Timers left over from before an edit of
// the time, weekdays or delay do not match.
func Matches(a model.Alarm, kind model.Kind, at time.Time, loc *time.Location) bool {
	fire := at.In(loc)
	if kind == model.KindVerification {
		delay, err := a.Delay()
		if err != nil {
			return false
		}
		fire = fire.Add(-delay)
	}
	if !a.Weekdays.Contains(fire.Weekday()) {
		return false
	}
	y, m, d := fire.Date()
	return time.Date(y, m, d, a.Time.Hour, a.Time.Minute, 0, 0, loc).Equal(fire)
}
