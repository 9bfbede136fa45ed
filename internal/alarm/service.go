// Package alarm stores alarms and keeps their notifications in step with
// every create, edit, toggle and delete.
package alarm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/timer"
)

// ErrNotScheduled is returned alongside a saved alarm whose notifications
// could not be armed. The record is kept; the caller may retry scheduling.
var ErrNotScheduled = errors.New("alarm saved but notifications not scheduled")

// Scheduler is the subset of the scheduling engine the service drives.
type Scheduler interface {
	Apply(ctx context.Context, a model.Alarm) error
	CancelAlarmNotifications(ctx context.Context, alarmID string) error
	Pending(ctx context.Context, alarmID string) ([]timer.Timer, error)
}

// Service implements the alarm lifecycle.
type Service struct {
	store     *Store
	scheduler Scheduler
	logger    zerolog.Logger
}

// NewService creates a Service.
func NewService(store *Store, scheduler Scheduler, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		scheduler: scheduler,
		logger:    logger.With().Str("component", "alarms").Logger(),
	}
}

// UpdateFields holds optional fields for a partial update.
type UpdateFields struct {
	Title             *string
	Time              *model.TimeOfDay
	Weekdays          *model.Weekdays
	VerificationDelay *string
}

func (f UpdateFields) empty() bool {
	return f.Title == nil && f.Time == nil && f.Weekdays == nil && f.VerificationDelay == nil
}

// Create validates and stores a, then arms its notifications if it is active.
func (s *Service) Create(ctx context.Context, a model.Alarm) (*model.Alarm, error) {
	if a.VerificationDelay == "" {
		a.VerificationDelay = model.DefaultVerificationDelay
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	created, err := s.store.Add(ctx, a)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("alarm_id", created.ID).Str("title", created.Title).Msg("alarm created")

	if err := s.scheduler.Apply(ctx, *created); err != nil {
		return created, fmt.Errorf("%w: %w", ErrNotScheduled, err)
	}
	return created, nil
}

// Get returns one alarm.
func (s *Service) Get(ctx context.Context, id string) (*model.Alarm, error) {
	return s.store.GetByID(ctx, id)
}

// List returns all alarms ordered by time of day.
func (s *Service) List(ctx context.Context) ([]model.Alarm, error) {
	return s.store.List(ctx)
}

// Update edits an alarm. The old notifications are cancelled before the
// record changes and the new ones armed after, never modified in place.
func (s *Service) Update(ctx context.Context, id string, fields UpdateFields) (*model.Alarm, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields.empty() {
		return current, nil
	}

	next := *current
	if fields.Title != nil {
		next.Title = *fields.Title
	}
	if fields.Time != nil {
		next.Time = *fields.Time
	}
	if fields.Weekdays != nil {
		next.Weekdays = *fields.Weekdays
	}
	if fields.VerificationDelay != nil {
		next.VerificationDelay = *fields.VerificationDelay
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if err := s.scheduler.CancelAlarmNotifications(ctx, id); err != nil {
		return nil, err
	}

	updated, err := s.store.Save(ctx, next)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("alarm_id", id).Msg("alarm updated")

	if err := s.scheduler.Apply(ctx, *updated); err != nil {
		return updated, fmt.Errorf("%w: %w", ErrNotScheduled, err)
	}
	return updated, nil
}

// SetActive enables or disables an alarm.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*model.Alarm, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	next.Active = active
	updated, err := s.store.Save(ctx, next)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("alarm_id", id).Bool("active", active).Msg("alarm toggled")

	if err := s.scheduler.Apply(ctx, *updated); err != nil {
		return updated, fmt.Errorf("%w: %w", ErrNotScheduled, err)
	}
	return updated, nil
}

// Toggle flips the active flag.
func (s *Service) Toggle(ctx context.Context, id string) (*model.Alarm, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.SetActive(ctx, id, !current.Active)
}

// Delete cancels an alarm's notifications, then removes it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.scheduler.CancelAlarmNotifications(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("alarm_id", id).Msg("alarm deleted")
	return nil
}

// ReconcileReport summarizes a ReconcileAll pass.
type ReconcileReport struct {
	Rescheduled []string `json:"rescheduled"`
	Cancelled   []string `json:"cancelled"`
	Orphaned    []string `json:"orphaned"`
	Failed      []string `json:"failed"`
}

// ReconcileAll restores the timer invariant for every alarm: active alarms
// whose pending count is off are rescheduled, inactive alarms and timers of
// deleted alarms are cancelled. It continues past individual failures.
func (s *Service) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	alarms, err := s.store.List(ctx)
	if err != nil {
		return report, err
	}
	pending, err := s.scheduler.Pending(ctx, "")
	if err != nil {
		return report, err
	}

	counts := make(map[string]int)
	for _, t := range pending {
		counts[t.Payload.AlarmID]++
	}

	var errs []error
	known := make(map[string]bool, len(alarms))
	for _, a := range alarms {
		known[a.ID] = true
		want := 0
		if a.Active {
			want = 2 * len(a.Weekdays.Normalize())
		}
		if counts[a.ID] == want {
			continue
		}

		if err := s.scheduler.Apply(ctx, a); err != nil {
			report.Failed = append(report.Failed, a.ID)
			errs = append(errs, fmt.Errorf("alarm %s: %w", a.ID, err))
			continue
		}
		if a.Active {
			report.Rescheduled = append(report.Rescheduled, a.ID)
		} else {
			report.Cancelled = append(report.Cancelled, a.ID)
		}
	}

	for id := range counts {
		if known[id] {
			continue
		}
		if err := s.scheduler.CancelAlarmNotifications(ctx, id); err != nil {
			report.Failed = append(report.Failed, id)
			errs = append(errs, fmt.Errorf("orphan %s: %w", id, err))
			continue
		}
		report.Orphaned = append(report.Orphaned, id)
	}

	s.logger.Info().
		Int("rescheduled", len(report.Rescheduled)).
		Int("cancelled", len(report.Cancelled)).
		Int("orphaned", len(report.Orphaned)).
		Int("failed", len(report.Failed)).
		Msg("reconciled alarms")

	return report, errors.Join(errs...)
}
