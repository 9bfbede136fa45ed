package timer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notexe/habit-alarm/internal/model"
)

// MemoryStore keeps timers in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	pending    map[string]Timer
	delivered  map[string]Timer
	permission Permission
}

// NewMemoryStore creates an empty store. A nil permission grants delivery.
func NewMemoryStore(permission Permission) *MemoryStore {
	if permission == nil {
		permission = AlwaysGranted
	}
	return &MemoryStore{
		pending:    make(map[string]Timer),
		delivered:  make(map[string]Timer),
		permission: permission,
	}
}

// ListPending returns all pending timers sorted by fire time.
func (s *MemoryStore) ListPending(_ context.Context) ([]Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Timer, 0, len(s.pending))
	for _, t := range s.pending {
		out = append(out, t)
	}
	sortByFireTime(out)
	return out, nil
}

func (s *MemoryStore) Schedule(_ context.Context, fireAt time.Time, payload model.Payload, content Content) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.pending[id] = Timer{ID: id, FireAt: fireAt, Payload: payload, Content: content}
	return id, nil
}

func (s *MemoryStore) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, id)
	return nil
}

func (s *MemoryStore) RequestDeliveryPermission(ctx context.Context) (bool, error) {
	return s.permission.Granted(ctx)
}

func (s *MemoryStore) TakeDue(_ context.Context, now time.Time) ([]Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Timer
	for id, t := range s.pending {
		if !t.FireAt.After(now) {
			due = append(due, t)
			s.delivered[id] = t
			delete(s.pending, id)
		}
	}
	sortByFireTime(due)
	return due, nil
}

func (s *MemoryStore) Delivered(_ context.Context, id string) (Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.delivered[id]
	if !ok {
		return Timer{}, ErrNotFound
	}
	return t, nil
}

func sortByFireTime(timers []Timer) {
	sort.Slice(timers, func(i, j int) bool {
		if timers[i].FireAt.Equal(timers[j].FireAt) {
			return timers[i].ID < timers[j].ID
		}
		return timers[i].FireAt.Before(timers[j].FireAt)
	})
}
