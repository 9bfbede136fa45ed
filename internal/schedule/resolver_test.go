package schedule

import (
	"testing"
	"time"

	"github.com/notexe/habit-alarm/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-06-02 is a Sunday.
func sundayAt(hour, minute int) time.Time {
	return time.Date(2024, 6, 2, hour, minute, 0, 0, time.UTC)
}

func TestNextFireInstantProperties(t *testing.T) {
	tods := []model.TimeOfDay{{Hour: 0}, {Hour: 7}, {Hour: 12, Minute: 30}, {Hour: 23, Minute: 59}}
	base := sundayAt(0, 0)

	// Walk a full week in 17-minute steps to hit every day boundary.
	for step := 0; step < 7*24*60/17+1; step++ {
		now := base.Add(time.Duration(step*17) * time.Minute)
		for w := time.Sunday; w <= time.Saturday; w++ {
			for _, tod := range tods {
				got := NextFireInstant(w, tod, now)
				require.Equal(t, w, got.Weekday(), "now=%s w=%d tod=%s", now, w, tod)
				require.False(t, got.Before(now), "now=%s got=%s", now, got)
				require.True(t, got.Before(now.Add(8*24*time.Hour)), "now=%s got=%s", now, got)
				require.Equal(t, tod.Hour, got.Hour())
				require.Equal(t, tod.Minute, got.Minute())
				require.Zero(t, got.Second())
			}
		}
	}
}

func TestNextFireInstantSameDay(t *testing.T) {
	seven := model.TimeOfDay{Hour: 7}

	// Target still ahead today.
	got := NextFireInstant(time.Sunday, seven, sundayAt(6, 59))
	assert.Equal(t, sundayAt(7, 0), got)

	// Exactly at the target counts as already passed.
	got = NextFireInstant(time.Sunday, seven, sundayAt(7, 0))
	assert.Equal(t, sundayAt(7, 0).AddDate(0, 0, 7), got)

	// Seconds past the target minute also count as passed.
	got = NextFireInstant(time.Sunday, seven, sundayAt(7, 0).Add(30*time.Second))
	assert.Equal(t, sundayAt(7, 0).AddDate(0, 0, 7), got)
}

func TestNextFireInstantCrossesWeekBoundary(t *testing.T) {
	// Saturday 23:00 looking for Sunday 06:00 is one day ahead.
	sat := time.Date(2024, 6, 8, 23, 0, 0, 0, time.UTC)
	got := NextFireInstant(time.Sunday, model.TimeOfDay{Hour: 6}, sat)
	assert.Equal(t, time.Date(2024, 6, 9, 6, 0, 0, 0, time.UTC), got)

	// Monday looking for the previous day wraps six days forward.
	mon := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	got = NextFireInstant(time.Sunday, model.TimeOfDay{Hour: 6}, mon)
	assert.Equal(t, time.Date(2024, 6, 9, 6, 0, 0, 0, time.UTC), got)
}

func TestNextFireInstantKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// DST starts 2024-03-10 in New York.
	now := time.Date(2024, 3, 8, 12, 0, 0, 0, loc)
	got := NextFireInstant(time.Monday, model.TimeOfDay{Hour: 7}, now)
	assert.Equal(t, time.Date(2024, 3, 11, 7, 0, 0, 0, loc), got)
	assert.Equal(t, 7, got.Hour())

	assert.Equal(t, 7, NextWeek(time.Date(2024, 3, 4, 7, 0, 0, 0, loc)).Hour())
}

func TestVerificationInstant(t *testing.T) {
	fire := time.Date(2024, 6, 3, 23, 55, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 4, 0, 5, 0, 0, time.UTC), VerificationInstant(fire, 10*time.Minute))
}

func TestOccurrencesScenarioMonWedFri(t *testing.T) {
	a := model.Alarm{
		ID:                "a1",
		Title:             "Run",
		Time:              model.TimeOfDay{Hour: 7},
		Weekdays:          model.Weekdays{time.Friday, time.Monday, time.Wednesday},
		VerificationDelay: "10 minutes",
	}
	occ, err := Occurrences(a, sundayAt(20, 0))
	require.NoError(t, err)
	require.Len(t, occ, 3)

	assert.Equal(t, time.Monday, occ[0].Weekday)
	assert.Equal(t, time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC), occ[0].AlarmAt)
	assert.Equal(t, time.Date(2024, 6, 3, 7, 10, 0, 0, time.UTC), occ[0].VerifyAt)
	assert.Equal(t, time.Date(2024, 6, 5, 7, 0, 0, 0, time.UTC), occ[1].AlarmAt)
	assert.Equal(t, time.Date(2024, 6, 7, 7, 10, 0, 0, time.UTC), occ[2].VerifyAt)
}

func TestOccurrencesRejectsEmptyWeekdays(t *testing.T) {
	_, err := Occurrences(model.Alarm{VerificationDelay: "10"}, sundayAt(0, 0))
	assert.ErrorIs(t, err, model.ErrNoWeekdays)
}

func TestOccurrencesRejectsBadDelay(t *testing.T) {
	_, err := Occurrences(model.Alarm{Weekdays: model.Weekdays{1}, VerificationDelay: "later"}, sundayAt(0, 0))
	assert.ErrorIs(t, err, model.ErrInvalidDelay)
}

func TestMatches(t *testing.T) {
	a := model.Alarm{
		Time:              model.TimeOfDay{Hour: 23, Minute: 55},
		Weekdays:          model.Weekdays{time.Monday},
		VerificationDelay: "10 minutes",
	}
	monday := time.Date(2024, 6, 3, 23, 55, 0, 0, time.UTC)

	assert.True(t, Matches(a, model.KindAlarm, monday, time.UTC))
	assert.True(t, Matches(a, model.KindVerification, monday.Add(10*time.Minute), time.UTC), "verification past midnight belongs to Monday")
	assert.False(t, Matches(a, model.KindAlarm, monday.Add(-time.Hour), time.UTC), "old time of day")
	assert.False(t, Matches(a, model.KindAlarm, monday.AddDate(0, 0, 1), time.UTC), "weekday no longer selected")
	assert.False(t, Matches(a, model.KindVerification, monday.Add(5*time.Minute), time.UTC), "old delay")

	tokyo := time.FixedZone("JST", 9*3600)
	assert.True(t, Matches(a, model.KindAlarm, monday.In(tokyo), time.UTC), "offset of the fired instant is irrelevant")
}

func TestMatchesNormalizedDSTGap(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	a := model.Alarm{Time: model.TimeOfDay{Hour: 2, Minute: 30}, Weekdays: model.Weekdays{time.Sunday}, VerificationDelay: "10"}
	// 02:30 does not exist on 2024-03-10; the resolver arms 03:30.
	fire := NextFireInstant(time.Sunday, a.Time, time.Date(2024, 3, 9, 12, 0, 0, 0, loc))
	assert.True(t, Matches(a, model.KindAlarm, fire, loc))
}
