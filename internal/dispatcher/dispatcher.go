// Package dispatcher stands in for the platform notification runtime: it
// takes due timers, delivers them and reports each delivery to the
// registered handler.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/notexe/habit-alarm/internal/notify"
	"github.com/notexe/habit-alarm/internal/reconciler"
	"github.com/notexe/habit-alarm/internal/timer"
)

// deliveredRetention is how long delivered timers stay available for taps.
const deliveredRetention = 8 * 24 * time.Hour

// Source hands out due timers, removing them from the pending set.
type Source interface {
	TakeDue(ctx context.Context, now time.Time) ([]timer.Timer, error)
}

// Pruner is implemented by sources that keep delivered timers around.
type Pruner interface {
	PruneDelivered(ctx context.Context, cutoff time.Time) (int64, error)
}

// Dispatcher periodically delivers due timers.
type Dispatcher struct {
	source   Source
	notifier notify.Notifier
	registry *Registry
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	retries     int
	baseBackoff time.Duration

	lastPrune time.Time
}

type Option func(*Dispatcher)

// WithRetry retries a failed delivery up to retries times with exponential
// backoff starting at base.
func WithRetry(retries int, base time.Duration) Option {
	return func(d *Dispatcher) {
		d.retries = retries
		d.baseBackoff = base
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l.With().Str("component", "dispatcher").Logger() }
}

func New(source Source, notifier notify.Notifier, registry *Registry, interval time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:   source,
		notifier: notifier,
		registry: registry,
		interval: interval,
		now:      time.Now,
		logger:   zerolog.Nop(),

		retries:     2,
		baseBackoff: time.Second,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run ticks immediately and then every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.interval <= 0 {
		return fmt.Errorf("dispatcher interval must be positive, got %s", d.interval)
	}

	d.logger.Info().Dur("interval", d.interval).Msg("started")
	d.Tick(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick delivers every due timer and returns how many were taken.
func (d *Dispatcher) Tick(ctx context.Context) int {
	now := d.now()
	due, err := d.source.TakeDue(ctx, now)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to take due timers")
		return 0
	}

	for _, t := range due {
		d.deliver(ctx, t)
	}

	d.prune(ctx, now)
	return len(due)
}

func (d *Dispatcher) deliver(ctx context.Context, t timer.Timer) {
	log := d.logger.With().
		Str("timer_id", t.ID).
		Str("alarm_id", t.Payload.AlarmID).
		Str("kind", string(t.Payload.Kind)).
		Logger()

	kind := string(t.Payload.Kind)
	if err := d.send(ctx, notify.MessageFor(t)); err != nil {
		deliveryFailuresTotal.WithLabelValues(kind).Inc()
		log.Error().Err(err).Msg("delivery failed")
	} else {
		deliveredTotal.WithLabelValues(kind).Inc()
		deliveryLag.Observe(d.now().Sub(t.FireAt).Seconds())
	}

	res, err := d.registry.Dispatch(ctx, reconciler.Event{Source: reconciler.SourceDelivered, Timer: t})
	switch {
	case errors.Is(err, ErrNoHandler):
		log.Warn().Msg("no handler registered, timer not re-armed")
	case err != nil:
		reconcileFailuresTotal.Inc()
		log.Error().Err(err).Msg("reconcile failed")
	case res.ReArmed != nil:
		log.Debug().Time("next_fire", res.ReArmed.FireAt).Msg("re-armed")
	}
}

func (d *Dispatcher) send(ctx context.Context, msg notify.Message) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.baseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = 30 * time.Second
	exp.Reset()

	retries := max(d.retries, 0)
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
	return backoff.Retry(func() error {
		return d.notifier.Send(ctx, msg)
	}, b)
}

func (d *Dispatcher) prune(ctx context.Context, now time.Time) {
	p, ok := d.source.(Pruner)
	if !ok || now.Sub(d.lastPrune) < time.Hour {
		return
	}
	d.lastPrune = now
	n, err := p.PruneDelivered(ctx, now.Add(-deliveredRetention))
	if err != nil {
		d.logger.Warn().Err(err).Msg("failed to prune delivered timers")
		return
	}
	if n > 0 {
		d.logger.Debug().Int64("count", n).Msg("pruned delivered timers")
	}
}
