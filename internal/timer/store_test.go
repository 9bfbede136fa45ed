package timer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T, loc *time.Location) *SQLiteStore {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "timers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLiteStore(db, loc, nil)
	require.NoError(t, err)
	return s
}

func runtimes(t *testing.T) map[string]Runtime {
	return map[string]Runtime{
		"memory": NewMemoryStore(nil),
		"sqlite": newSQLiteStore(t, time.UTC),
	}
}

func TestRuntimeScheduleListCancel(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)

	for name, s := range runtimes(t) {
		t.Run(name, func(t *testing.T) {
			p := model.Payload{AlarmID: "a1", Kind: model.KindAlarm}
			later, err := s.Schedule(ctx, base.Add(time.Hour), p, ContentFor("Run", model.KindAlarm))
			require.NoError(t, err)
			sooner, err := s.Schedule(ctx, base, model.Payload{AlarmID: "a1", Kind: model.KindVerification}, ContentFor("Run", model.KindVerification))
			require.NoError(t, err)
			assert.NotEqual(t, later, sooner)

			pending, err := s.ListPending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, sooner, pending[0].ID)
			assert.True(t, base.Equal(pending[0].FireAt))
			assert.Equal(t, "Did you complete: Run?", pending[0].Content.Title)
			assert.Equal(t, model.KindAlarm, pending[1].Payload.Kind)

			require.NoError(t, s.Cancel(ctx, later))
			require.NoError(t, s.Cancel(ctx, later), "cancel is idempotent")
			require.NoError(t, s.Cancel(ctx, "missing"))

			pending, err = s.ListPending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)
		})
	}
}

func TestRuntimeTakeDue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)

	for name, s := range runtimes(t) {
		t.Run(name, func(t *testing.T) {
			p := model.Payload{AlarmID: "a1", Kind: model.KindAlarm}
			due, err := s.Schedule(ctx, now, p, Content{Title: "due"})
			require.NoError(t, err)
			_, err = s.Schedule(ctx, now.Add(time.Minute), p, Content{Title: "future"})
			require.NoError(t, err)

			taken, err := s.TakeDue(ctx, now)
			require.NoError(t, err)
			require.Len(t, taken, 1)
			assert.Equal(t, due, taken[0].ID)

			again, err := s.TakeDue(ctx, now)
			require.NoError(t, err)
			assert.Empty(t, again, "due timers are single-shot")

			got, err := s.Delivered(ctx, due)
			require.NoError(t, err)
			assert.Equal(t, p, got.Payload)
			assert.Equal(t, "due", got.Content.Title)

			_, err = s.Delivered(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			pending, err := s.ListPending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, "future", pending[0].Content.Title)
		})
	}
}

func TestPermissionIsDelegated(t *testing.T) {
	denied := PermissionFunc(func(context.Context) (bool, error) { return false, nil })
	s := NewMemoryStore(denied)

	ok, err := s.RequestDeliveryPermission(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreReadsTimesInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	s := newSQLiteStore(t, loc)
	ctx := context.Background()

	fire := time.Date(2024, 6, 3, 7, 0, 0, 0, loc)
	_, err := s.Schedule(ctx, fire, model.Payload{AlarmID: "a1", Kind: model.KindAlarm}, Content{})
	require.NoError(t, err)

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 7, pending[0].FireAt.Hour())
	assert.Equal(t, loc, pending[0].FireAt.Location())
}

func TestSQLiteStorePruneDelivered(t *testing.T) {
	s := newSQLiteStore(t, time.UTC)
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)

	_, err := s.Schedule(ctx, now, model.Payload{AlarmID: "a1", Kind: model.KindAlarm}, Content{})
	require.NoError(t, err)
	_, err = s.TakeDue(ctx, now)
	require.NoError(t, err)

	n, err := s.PruneDelivered(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSQLiteStoreRejectsCorruptFireAt(t *testing.T) {
	s := newSQLiteStore(t, time.UTC)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO pending_timers (id, alarm_id, kind, fire_at, fire_unix) VALUES ('t1', 'a1', 'alarm', 'yesterday', 0)`)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO delivered_timers (id, alarm_id, kind, fire_at, delivered_at) VALUES ('t2', 'a1', 'alarm', 'yesterday', '2024-06-03T07:00:00Z')`)
	require.NoError(t, err)

	_, err = s.ListPending(ctx)
	assert.ErrorContains(t, err, "bad fire_at")

	_, err = s.Delivered(ctx, "t2")
	assert.ErrorContains(t, err, "bad fire_at")

	_, err = s.Delivered(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilterByAlarm(t *testing.T) {
	timers := []Timer{
		{ID: "1", Payload: model.Payload{AlarmID: "a", Kind: model.KindAlarm}},
		{ID: "2", Payload: model.Payload{AlarmID: "b", Kind: model.KindAlarm}},
		{ID: "3", Payload: model.Payload{AlarmID: "a", Kind: model.KindVerification}},
	}
	got := FilterByAlarm(timers, "a")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
	assert.Empty(t, FilterByAlarm(timers, "c"))
}
