// Package engine keeps the pending timer set of every alarm consistent with
// its weekly rule.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/schedule"
	"github.com/notexe/habit-alarm/internal/timer"
)

// AlarmLookup returns the stored state of an alarm, or nil once it has been
// deleted.
type AlarmLookup interface {
	Current(ctx context.Context, alarmID string) (*model.Alarm, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Engine materializes alarms into timers. All timer changes for one alarm id
// are serialized.
type Engine struct {
	store  timer.Store
	now    Clock
	alarms AlarmLookup
	locks  *keyedMutex
	logger zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.now = c }
}

// WithAlarmLookup makes ReArm check the fired timer against the stored
// alarm, skipping disabled and deleted alarms and timers an edit superseded.
func WithAlarmLookup(l AlarmLookup) Option {
	return func(e *Engine) { e.alarms = l }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l.With().Str("component", "engine").Logger() }
}

// New creates an Engine on top of store.
func New(store timer.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    time.Now,
		locks:  newKeyedMutex(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScheduleAlarm replaces every pending timer of a with a fresh alarm and
// verification timer per active weekday. Nothing is touched when the weekday
// set is empty or delivery permission is denied. A store failure can leave
// some weekdays unscheduled; calling again converges.
func (e *Engine) ScheduleAlarm(ctx context.Context, a model.Alarm) error {
	occurrences, err := schedule.Occurrences(a, e.now())
	if err != nil {
		return err
	}

	granted, err := e.store.RequestDeliveryPermission(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if !granted {
		e.logger.Warn().Str("alarm_id", a.ID).Msg("delivery permission not granted")
		return ErrPermissionDenied
	}

	unlock := e.locks.lock(a.ID)
	defer unlock()

	if err := e.cancelLocked(ctx, a.ID); err != nil {
		return err
	}

	alarmContent := timer.ContentFor(a.Title, model.KindAlarm)
	verifyContent := timer.ContentFor(a.Title, model.KindVerification)

	for _, occ := range occurrences {
		alarmID, err := e.store.Schedule(ctx, occ.AlarmAt, model.Payload{AlarmID: a.ID, Kind: model.KindAlarm}, alarmContent)
		if err != nil {
			return fmt.Errorf("%w: alarm timer for %s: %w", ErrStoreFailure, occ.Weekday, err)
		}
		verifyID, err := e.store.Schedule(ctx, occ.VerifyAt, model.Payload{AlarmID: a.ID, Kind: model.KindVerification}, verifyContent)
		if err != nil {
			return fmt.Errorf("%w: verification timer for %s: %w", ErrStoreFailure, occ.Weekday, err)
		}

		e.logger.Debug().
			Str("alarm_id", a.ID).
			Str("weekday", occ.Weekday.String()).
			Time("alarm_at", occ.AlarmAt).
			Str("alarm_timer", alarmID).
			Time("verify_at", occ.VerifyAt).
			Str("verify_timer", verifyID).
			Msg("scheduled occurrence")
	}

	e.logger.Info().Str("alarm_id", a.ID).Int("timers", 2*len(occurrences)).Msg("alarm scheduled")
	return nil
}

// CancelAlarmNotifications destroys every pending timer tagged with alarmID.
// It succeeds when there is nothing to cancel.
func (e *Engine) CancelAlarmNotifications(ctx context.Context, alarmID string) error {
	unlock := e.locks.lock(alarmID)
	defer unlock()

	return e.cancelLocked(ctx, alarmID)
}

func (e *Engine) cancelLocked(ctx context.Context, alarmID string) error {
	pending, err := e.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("%w: list pending: %w", ErrStoreFailure, err)
	}

	matching := timer.FilterByAlarm(pending, alarmID)
	var errs []error
	for _, t := range matching {
		if err := e.store.Cancel(ctx, t.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: cancel %d of %d timers: %w", ErrStoreFailure, len(errs), len(matching), errors.Join(errs...))
	}

	if len(matching) > 0 {
		e.logger.Info().Str("alarm_id", alarmID).Int("timers", len(matching)).Msg("cancelled notifications")
	}
	return nil
}

// Apply brings the timer set in line with a's current state: scheduled when
// active, empty otherwise. Edits go through here as cancel-then-reschedule.
func (e *Engine) Apply(ctx context.Context, a model.Alarm) error {
	if a.Active {
		return e.ScheduleAlarm(ctx, a)
	}
	return e.CancelAlarmNotifications(ctx, a.ID)
}

// SetActive schedules or cancels a according to active.
func (e *Engine) SetActive(ctx context.Context, a model.Alarm, active bool) error {
	a.Active = active
	return e.Apply(ctx, a)
}

// ReArm arms the replacement of a fired timer one week later, carrying the
// same payload. If the week-later instant is already in the past it advances
// by further weeks. An identical pending timer is reused rather than
// duplicated. With an AlarmLookup, a timer whose alarm is gone or disabled
// yields ErrAlarmInactive and one that no longer fits the alarm's rule yields
// ErrTimerSuperseded; the alarm's current timers already cover it.
func (e *Engine) ReArm(ctx context.Context, fired timer.Timer) (timer.Timer, error) {
	p := fired.Payload
	if p.AlarmID == "" || !p.Kind.Valid() {
		return timer.Timer{}, fmt.Errorf("%w: bad payload %+v", model.ErrValidation, p)
	}

	unlock := e.locks.lock(p.AlarmID)
	defer unlock()

	now := e.now()
	content := fired.Content
	if e.alarms != nil {
		a, err := e.alarms.Current(ctx, p.AlarmID)
		switch {
		case err != nil:
			e.logger.Warn().Err(err).Str("alarm_id", p.AlarmID).Msg("alarm lookup failed, re-arming anyway")
		case a == nil || !a.Active:
			return timer.Timer{}, ErrAlarmInactive
		case !schedule.Matches(*a, p.Kind, fired.FireAt, now.Location()):
			e.logger.Info().
				Str("alarm_id", p.AlarmID).
				Str("kind", string(p.Kind)).
				Time("fired_at", fired.FireAt).
				Msg("fired timer predates an edit, not re-arming")
			return timer.Timer{}, ErrTimerSuperseded
		default:
			content = timer.ContentFor(a.Title, p.Kind)
		}
	}

	next := schedule.NextWeek(fired.FireAt.In(now.Location()))
	for !next.After(now) {
		next = schedule.NextWeek(next)
	}

	pending, err := e.store.ListPending(ctx)
	if err != nil {
		return timer.Timer{}, fmt.Errorf("%w: list pending: %w", ErrStoreFailure, err)
	}
	for _, t := range timer.FilterByAlarm(pending, p.AlarmID) {
		if t.Payload.Kind == p.Kind && t.FireAt.Equal(next) {
			return t, nil
		}
	}

	id, err := e.store.Schedule(ctx, next, p, content)
	if err != nil {
		return timer.Timer{}, fmt.Errorf("%w: re-arm %s: %w", ErrStoreFailure, p.AlarmID, err)
	}

	e.logger.Info().
		Str("alarm_id", p.AlarmID).
		Str("kind", string(p.Kind)).
		Time("fire_at", next).
		Msg("re-armed for next week")

	return timer.Timer{ID: id, FireAt: next, Payload: p, Content: content}, nil
}

// Count returns the number of pending timers tagged with alarmID.
func (e *Engine) Count(ctx context.Context, alarmID string) (int, error) {
	pending, err := e.store.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list pending: %w", ErrStoreFailure, err)
	}
	return len(timer.FilterByAlarm(pending, alarmID)), nil
}

// Pending returns every pending timer, optionally restricted to one alarm.
func (e *Engine) Pending(ctx context.Context, alarmID string) ([]timer.Timer, error) {
	pending, err := e.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list pending: %w", ErrStoreFailure, err)
	}
	if alarmID == "" {
		return pending, nil
	}
	return timer.FilterByAlarm(pending, alarmID), nil
}
