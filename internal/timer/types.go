// Package timer models the runtime's registry of scheduled, single-shot
// notifications. Timers are never modified in place: a change is a cancel
// followed by a fresh schedule.
package timer

import (
	"context"
	"errors"
	"time"

	"github.com/notexe/habit-alarm/internal/model"
)

var ErrNotFound = errors.New("timer not found")

// Content is what the user sees when a timer fires.
type Content struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Timer is a pending (or delivered) notification.
type Timer struct {
	ID      string        `json:"id"`
	FireAt  time.Time     `json:"fire_at"`
	Payload model.Payload `json:"payload"`
	Content Content       `json:"content"`
}

// Store is the registry the scheduling engine materializes timers into.
type Store interface {
	ListPending(ctx context.Context) ([]Timer, error)
	Schedule(ctx context.Context, fireAt time.Time, payload model.Payload, content Content) (string, error)
	// Cancel removes a pending timer. Cancelling an unknown id is not an error.
	Cancel(ctx context.Context, id string) error
	RequestDeliveryPermission(ctx context.Context) (bool, error)
}

// Runtime is a Store that also hands out due timers for delivery.
type Runtime interface {
	Store
	// TakeDue removes and returns every pending timer firing at or before now.
	TakeDue(ctx context.Context, now time.Time) ([]Timer, error)
	// Delivered returns a previously taken timer by id.
	Delivered(ctx context.Context, id string) (Timer, error)
}

// Permission decides whether notifications may be delivered.
type Permission interface {
	Granted(ctx context.Context) (bool, error)
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context) (bool, error)

func (f PermissionFunc) Granted(ctx context.Context) (bool, error) { return f(ctx) }

// AlwaysGranted never refuses delivery.
var AlwaysGranted = PermissionFunc(func(context.Context) (bool, error) { return true, nil })

// ContentFor returns the notification text for a timer of the given kind.
func ContentFor(title string, kind model.Kind) Content {
	if kind == model.KindVerification {
		return Content{
			Title: "Did you complete: " + title + "?",
			Body:  "Tap to mark as completed",
		}
	}
	return Content{Title: title, Body: "Time for your habit!"}
}

// FilterByAlarm returns the timers tagged with alarmID, of any kind.
func FilterByAlarm(timers []Timer, alarmID string) []Timer {
	var out []Timer
	for _, t := range timers {
		if t.Payload.AlarmID == alarmID {
			out = append(out, t)
		}
	}
	return out
}
