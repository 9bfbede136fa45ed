package reconciler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notexe/habit-alarm/internal/completion"
	"github.com/notexe/habit-alarm/internal/engine"
	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/storage"
	"github.com/notexe/habit-alarm/internal/timer"
)

// --- Fakes ---

type fakeRecorder struct {
	err   error
	calls []string
}

func (f *fakeRecorder) RecordCompletion(_ context.Context, alarmID, date string, completed bool) error {
	f.calls = append(f.calls, alarmID+"@"+date)
	return f.err
}

type failingRearmer struct {
	err   error
	calls int
}

func (f *failingRearmer) ReArm(_ context.Context, fired timer.Timer) (timer.Timer, error) {
	f.calls++
	if f.err != nil {
		return timer.Timer{}, f.err
	}
	return timer.Timer{ID: "next", FireAt: fired.FireAt.AddDate(0, 0, 7), Payload: fired.Payload}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// --- Helpers ---

var firedAt = time.Date(2024, 6, 3, 7, 10, 0, 0, time.UTC)

func verificationTimer(id string) timer.Timer {
	return timer.Timer{
		ID:      id,
		FireAt:  firedAt,
		Payload: model.Payload{AlarmID: "alarm-x", Kind: model.KindVerification},
		Content: timer.ContentFor("Run", model.KindVerification),
	}
}

func setup(t *testing.T, rec Recorder) (*Reconciler, *timer.MemoryStore, *clock) {
	t.Helper()
	c := &clock{t: firedAt.Add(time.Second)}
	store := timer.NewMemoryStore(nil)
	eng := engine.New(store, engine.WithClock(c.now))
	return New(rec, eng, c.now, zerolog.Nop()), store, c
}

func pendingFor(t *testing.T, store timer.Store) []timer.Timer {
	t.Helper()
	pending, err := store.ListPending(context.Background())
	require.NoError(t, err)
	return timer.FilterByAlarm(pending, "alarm-x")
}

// --- Tests ---

func TestVerificationRecordsCompletionAndReArms(t *testing.T) {
	rec := &fakeRecorder{}
	r, store, _ := setup(t, rec)

	res, err := r.OnNotificationEvent(context.Background(), Event{Source: SourceTapped, Timer: verificationTimer("t1")})
	require.NoError(t, err)

	assert.True(t, res.Completed)
	assert.Equal(t, []string{"alarm-x@2024-06-03"}, rec.calls)
	require.NotNil(t, res.ReArmed)

	pending := pendingFor(t, store)
	require.Len(t, pending, 1)
	assert.Equal(t, model.KindVerification, pending[0].Payload.Kind)
	assert.True(t, firedAt.AddDate(0, 0, 7).Equal(pending[0].FireAt))
}

func TestAlarmKindDoesNotRecordCompletion(t *testing.T) {
	rec := &fakeRecorder{}
	r, store, _ := setup(t, rec)

	fired := verificationTimer("t1")
	fired.Payload.Kind = model.KindAlarm
	res, err := r.OnNotificationEvent(context.Background(), Event{Source: SourceDelivered, Timer: fired})
	require.NoError(t, err)

	assert.False(t, res.Completed)
	assert.Empty(t, rec.calls)
	assert.Len(t, pendingFor(t, store), 1)
}

func TestTapAfterDeliveryDoesNotDoubleReArm(t *testing.T) {
	rec := &fakeRecorder{}
	r, store, _ := setup(t, rec)
	ctx := context.Background()
	fired := verificationTimer("t1")

	first, err := r.OnNotificationEvent(ctx, Event{Source: SourceDelivered, Timer: fired})
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := r.OnNotificationEvent(ctx, Event{Source: SourceTapped, Timer: fired})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Nil(t, second.ReArmed)

	assert.Len(t, pendingFor(t, store), 1)
	assert.Equal(t, []string{"alarm-x@2024-06-03"}, rec.calls, "only the tap counts as completion")
}

func TestDeliveredVerificationOnlyReArms(t *testing.T) {
	rec := &fakeRecorder{}
	r, store, _ := setup(t, rec)

	res, err := r.OnNotificationEvent(context.Background(), Event{Source: SourceDelivered, Timer: verificationTimer("t1")})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Empty(t, rec.calls)
	assert.NotNil(t, res.ReArmed)
	assert.Len(t, pendingFor(t, store), 1)
}

func TestScenarioVerificationTwiceSameDay(t *testing.T) {
	c := &clock{t: firedAt.Add(time.Second)}
	db, err := storage.Open(filepath.Join(t.TempDir(), "habit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	completions, err := completion.NewStore(db, "user-1", c.now)
	require.NoError(t, err)
	store := timer.NewMemoryStore(nil)
	r := New(completions, engine.New(store, engine.WithClock(c.now)), c.now, zerolog.Nop())
	ctx := context.Background()

	_, err = r.OnNotificationEvent(ctx, Event{Source: SourceTapped, Timer: verificationTimer("t1")})
	require.NoError(t, err)
	first, err := completions.Get(ctx, "alarm-x", "2024-06-03")
	require.NoError(t, err)
	assert.True(t, first.Completed)

	c.t = c.t.Add(30 * time.Minute)
	_, err = r.OnNotificationEvent(ctx, Event{Source: SourceTapped, Timer: verificationTimer("t1")})
	require.NoError(t, err)

	second, err := completions.Get(ctx, "alarm-x", "2024-06-03")
	require.NoError(t, err)
	require.NotNil(t, second.CompletedAt)
	assert.True(t, c.t.Equal(*second.CompletedAt))

	history, err := completions.History(ctx, "alarm-x", "2024-06-03", "2024-06-03")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, pendingFor(t, store), 1)
}

func TestCompletionFailureDoesNotBlockReArm(t *testing.T) {
	rec := &fakeRecorder{err: completion.ErrPersistence}
	r, store, _ := setup(t, rec)

	res, err := r.OnNotificationEvent(context.Background(), Event{Source: SourceTapped, Timer: verificationTimer("t1")})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.ErrorIs(t, res.CompletionErr, completion.ErrPersistence)
	require.NotNil(t, res.ReArmed)
	assert.Len(t, pendingFor(t, store), 1)
}

func TestReArmFailureCanBeRetried(t *testing.T) {
	c := &clock{t: firedAt}
	rearmer := &failingRearmer{err: engine.ErrStoreFailure}
	r := New(&fakeRecorder{}, rearmer, c.now, zerolog.Nop())
	ctx := context.Background()
	ev := Event{Source: SourceDelivered, Timer: verificationTimer("t1")}

	_, err := r.OnNotificationEvent(ctx, ev)
	require.ErrorIs(t, err, engine.ErrStoreFailure)

	rearmer.err = nil
	res, err := r.OnNotificationEvent(ctx, ev)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.NotNil(t, res.ReArmed)
	assert.Equal(t, 2, rearmer.calls)
}

func TestInactiveAlarmIsNotAnError(t *testing.T) {
	rearmer := &failingRearmer{err: engine.ErrAlarmInactive}
	r := New(&fakeRecorder{}, rearmer, nil, zerolog.Nop())

	res, err := r.OnNotificationEvent(context.Background(), Event{Source: SourceDelivered, Timer: verificationTimer("t1")})
	require.NoError(t, err)
	assert.True(t, res.Inactive)
	assert.Nil(t, res.ReArmed)
}

func TestSupersededTimerIsNotAnError(t *testing.T) {
	rearmer := &failingRearmer{err: engine.ErrTimerSuperseded}
	rec := &fakeRecorder{}
	r := New(rec, rearmer, nil, zerolog.Nop())

	res, err := r.OnNotificationEvent(context.Background(), Event{Source: SourceTapped, Timer: verificationTimer("t1")})
	require.NoError(t, err)
	assert.True(t, res.Superseded)
	assert.True(t, res.Completed, "a confirmed prompt still counts after an edit")
	assert.Nil(t, res.ReArmed)
}

func TestHandledIDsArePruned(t *testing.T) {
	c := &clock{t: firedAt}
	r := New(&fakeRecorder{}, &failingRearmer{}, c.now, zerolog.Nop())
	ctx := context.Background()

	_, err := r.OnNotificationEvent(ctx, Event{Source: SourceDelivered, Timer: verificationTimer("t1")})
	require.NoError(t, err)
	assert.Len(t, r.handled, 1)

	c.t = firedAt.Add(handledRetention + time.Hour)
	_, err = r.OnNotificationEvent(ctx, Event{Source: SourceDelivered, Timer: verificationTimer("t2")})
	require.NoError(t, err)
	assert.Len(t, r.handled, 1)
	assert.Contains(t, r.handled, "t2")
}

func TestRejectsBadPayload(t *testing.T) {
	r := New(&fakeRecorder{}, &failingRearmer{}, nil, zerolog.Nop())
	_, err := r.OnNotificationEvent(context.Background(), Event{Timer: timer.Timer{Payload: model.Payload{Kind: model.KindAlarm}}})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestHandleRaw(t *testing.T) {
	rec := &fakeRecorder{}
	r, store, _ := setup(t, rec)

	raw := []byte(`{"timer_id":"t9","alarmId":"alarm-x","type":"verification","fire_at":"2024-06-03T07:10:00Z","title":"Did you complete: Run?"}`)
	res, err := r.HandleRaw(context.Background(), SourceTapped, raw)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	pending := pendingFor(t, store)
	require.Len(t, pending, 1)
	assert.Equal(t, "Did you complete: Run?", pending[0].Content.Title)

	_, err = r.HandleRaw(context.Background(), SourceTapped, []byte(`{"alarmId":"alarm-x","type":"alarm"}`))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = r.HandleRaw(context.Background(), SourceTapped, []byte(`not json`))
	assert.True(t, errors.Is(err, model.ErrValidation))
}
