// Package reconciler handles fired notifications: it records confirmed
// verifications and re-arms the fired timer for the following week.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/notexe/habit-alarm/internal/engine"
	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/timer"
)

// Source tells which runtime callback produced an event.
type Source string

const (
	// SourceTapped is a user interaction with a delivered notification.
	SourceTapped Source = "tapped"
	// SourceDelivered is a notification delivered while the app is running.
	SourceDelivered Source = "delivered"
)

// handledRetention bounds how long a timer id is remembered for dedup.
const handledRetention = 8 * 24 * time.Hour

// Event is one fired notification as reported by the runtime.
type Event struct {
	Source Source
	Timer  timer.Timer
}

// Result describes what reconciling an event did.
type Result struct {
	// Completed is set when a completion record was written.
	Completed     bool
	CompletionErr error
	// ReArmed is the replacement timer, nil when nothing was armed.
	ReArmed *timer.Timer
	// Duplicate is set when this timer id was already re-armed.
	Duplicate bool
	// Inactive is set when the alarm was disabled or deleted meanwhile.
	Inactive bool
	// Superseded is set when the alarm was edited after the timer fired.
	Superseded bool
}

// Recorder persists verification outcomes.
type Recorder interface {
	RecordCompletion(ctx context.Context, alarmID, date string, completed bool) error
}

// Rearmer arms the next occurrence of a fired timer.
type Rearmer interface {
	ReArm(ctx context.Context, fired timer.Timer) (timer.Timer, error)
}

// Reconciler re-arms tapped and delivered events alike. Only a tap on a
// verification prompt counts as a completion.
type Reconciler struct {
	recorder Recorder
	rearmer  Rearmer
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	handled map[string]time.Time
}

// New creates a Reconciler. now decides the calendar date completions are
// recorded under, so it should return local time.
func New(recorder Recorder, rearmer Rearmer, now func() time.Time, logger zerolog.Logger) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		recorder: recorder,
		rearmer:  rearmer,
		now:      now,
		logger:   logger.With().Str("component", "reconciler").Logger(),
		handled:  make(map[string]time.Time),
	}
}

// OnNotificationEvent records a completion when the user tapped a
// verification prompt and then re-arms the fired timer a week out. Delivery
// alone never marks a day done. A failed completion write never stops the
// re-arm. Each timer id is re-armed at most once.
func (r *Reconciler) OnNotificationEvent(ctx context.Context, ev Event) (Result, error) {
	var res Result
	p := ev.Timer.Payload
	if p.AlarmID == "" || !p.Kind.Valid() {
		return res, fmt.Errorf("%w: notification payload %+v", model.ErrValidation, p)
	}

	log := r.logger.With().
		Str("source", string(ev.Source)).
		Str("timer_id", ev.Timer.ID).
		Str("alarm_id", p.AlarmID).
		Str("kind", string(p.Kind)).
		Logger()

	if p.Kind == model.KindVerification && ev.Source == SourceTapped {
		today := r.now().Format(model.DateLayout)
		if err := r.recorder.RecordCompletion(ctx, p.AlarmID, today, true); err != nil {
			res.CompletionErr = err
			log.Error().Err(err).Str("date", today).Msg("failed to record completion")
		} else {
			res.Completed = true
			log.Info().Str("date", today).Msg("completion recorded")
		}
	}

	if !r.claim(ev.Timer) {
		res.Duplicate = true
		log.Debug().Msg("timer already re-armed")
		return res, nil
	}

	next, err := r.rearmer.ReArm(ctx, ev.Timer)
	switch {
	case errors.Is(err, engine.ErrAlarmInactive):
		res.Inactive = true
		log.Info().Msg("alarm inactive, not re-arming")
		return res, nil
	case errors.Is(err, engine.ErrTimerSuperseded):
		res.Superseded = true
		log.Info().Msg("alarm edited since firing, not re-arming")
		return res, nil
	case err != nil:
		r.release(ev.Timer.ID)
		log.Error().Err(err).Msg("failed to re-arm, alarm stops until next reschedule")
		return res, fmt.Errorf("re-arm %s: %w", p.AlarmID, err)
	}

	res.ReArmed = &next
	log.Info().Time("next_fire_at", next.FireAt).Msg("notification reconciled")
	return res, nil
}

// claim marks the timer id as handled. It reports false when another event
// already claimed it. Timers without an id are always processed.
func (r *Reconciler) claim(t timer.Timer) bool {
	if t.ID == "" {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-handledRetention)
	for id, firedAt := range r.handled {
		if firedAt.Before(cutoff) {
			delete(r.handled, id)
		}
	}

	if _, ok := r.handled[t.ID]; ok {
		return false
	}
	r.handled[t.ID] = t.FireAt
	return true
}

func (r *Reconciler) release(id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	delete(r.handled, id)
	r.mu.Unlock()
}

type rawEvent struct {
	TimerID string     `json:"timer_id"`
	AlarmID string     `json:"alarmId"`
	Kind    model.Kind `json:"type"`
	FireAt  time.Time  `json:"fire_at"`
	Title   string     `json:"title"`
	Body    string     `json:"body"`
}

// ParseEvent decodes a raw runtime notification of the form
// {"timer_id": ..., "alarmId": ..., "type": "alarm"|"verification", "fire_at": RFC3339}.
func ParseEvent(source Source, raw []byte) (Event, error) {
	var re rawEvent
	if err := json.Unmarshal(raw, &re); err != nil {
		return Event{}, fmt.Errorf("%w: decode notification event: %v", model.ErrValidation, err)
	}
	if re.FireAt.IsZero() {
		return Event{}, fmt.Errorf("%w: notification event has no fire_at", model.ErrValidation)
	}
	return Event{
		Source: source,
		Timer: timer.Timer{
			ID:      re.TimerID,
			FireAt:  re.FireAt,
			Payload: model.Payload{AlarmID: re.AlarmID, Kind: re.Kind},
			Content: timer.Content{Title: re.Title, Body: re.Body},
		},
	}, nil
}

// HandleRaw parses raw and reconciles it.
func (r *Reconciler) HandleRaw(ctx context.Context, source Source, raw []byte) (Result, error) {
	ev, err := ParseEvent(source, raw)
	if err != nil {
		return Result{}, err
	}
	return r.OnNotificationEvent(ctx, ev)
}
