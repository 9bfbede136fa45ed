package dispatcher

import (
	"context"
	"errors"
	"sync"

	"github.com/notexe/habit-alarm/internal/reconciler"
)

var (
	ErrAlreadyRegistered = errors.New("notification handler already registered")
	ErrNoHandler         = errors.New("no notification handler registered")
)

// Handler consumes fired notification events.
type Handler interface {
	OnNotificationEvent(ctx context.Context, ev reconciler.Event) (reconciler.Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev reconciler.Event) (reconciler.Result, error)

func (f HandlerFunc) OnNotificationEvent(ctx context.Context, ev reconciler.Event) (reconciler.Result, error) {
	return f(ctx, ev)
}

// Registry holds the single process-wide notification handler.
type Registry struct {
	mu      sync.RWMutex
	handler Handler
}

// SetupNotificationHandling registers h. Only the first call succeeds.
func (r *Registry) SetupNotificationHandling(h Handler) error {
	if h == nil {
		return errors.New("handler is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handler != nil {
		return ErrAlreadyRegistered
	}
	r.handler = h
	return nil
}

// Dispatch hands ev to the registered handler.
func (r *Registry) Dispatch(ctx context.Context, ev reconciler.Event) (reconciler.Result, error) {
	r.mu.RLock()
	h := r.handler
	r.mu.RUnlock()
	if h == nil {
		return reconciler.Result{}, ErrNoHandler
	}
	return h.OnNotificationEvent(ctx, ev)
}

var defaultRegistry = &Registry{}

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// SetupNotificationHandling registers h on the process-wide registry.
func SetupNotificationHandling(h Handler) error {
	return defaultRegistry.SetupNotificationHandling(h)
}
