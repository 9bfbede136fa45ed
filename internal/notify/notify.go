// Package notify delivers fired timers to the user.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/timer"
)

// Message is a delivered notification.
type Message struct {
	TimerID string
	AlarmID string
	Kind    model.Kind
	FireAt  time.Time
	Title   string
	Body    string
}

// MessageFor builds the message for a fired timer.
func MessageFor(t timer.Timer) Message {
	return Message{
		TimerID: t.ID,
		AlarmID: t.Payload.AlarmID,
		Kind:    t.Payload.Kind,
		FireAt:  t.FireAt,
		Title:   t.Content.Title,
		Body:    t.Content.Body,
	}
}

// Notifier sends messages. Granted doubles as the delivery permission check
// used before anything is scheduled.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Granted(ctx context.Context) (bool, error)
}

// LogNotifier writes notifications to the log. It is always permitted.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info().
		Str("timer_id", msg.TimerID).
		Str("alarm_id", msg.AlarmID).
		Str("kind", string(msg.Kind)).
		Time("fire_at", msg.FireAt).
		Str("title", msg.Title).
		Msg(msg.Body)
	return nil
}

func (n *LogNotifier) Granted(context.Context) (bool, error) { return true, nil }
