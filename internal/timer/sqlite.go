package timer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/notexe/habit-alarm/internal/model"
)

// SQLiteStore persists pending and delivered timers so the schedule survives
// daemon restarts.
type SQLiteStore struct {
	db         *sql.DB
	loc        *time.Location
	permission Permission
}

// NewSQLiteStore creates the timer tables on db. Fire times are read back in
// loc so weekly re-arming keeps local wall-clock time.
func NewSQLiteStore(db *sql.DB, loc *time.Location, permission Permission) (*SQLiteStore, error) {
	if loc == nil {
		loc = time.Local
	}
	if permission == nil {
		permission = AlwaysGranted
	}
	if err := createTimerTables(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, loc: loc, permission: permission}, nil
}

func createTimerTables(db *sql.DB) error {
	stmts := []string{`
		CREATE TABLE IF NOT EXISTS pending_timers (
			id         TEXT    PRIMARY KEY,
			alarm_id   TEXT    NOT NULL,
			kind       TEXT    NOT NULL,
			fire_at    TEXT    NOT NULL,
			fire_unix  INTEGER NOT NULL,
			title      TEXT    NOT NULL DEFAULT '',
			body       TEXT    NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_timers_alarm ON pending_timers(alarm_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_timers_fire ON pending_timers(fire_unix)`, `
		CREATE TABLE IF NOT EXISTS delivered_timers (
			id           TEXT PRIMARY KEY,
			alarm_id     TEXT NOT NULL,
			kind         TEXT NOT NULL,
			fire_at      TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			body         TEXT NOT NULL DEFAULT '',
			delivered_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create timer tables: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListPending(ctx context.Context) ([]Timer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, alarm_id, kind, fire_at, title, body
		FROM pending_timers ORDER BY fire_unix ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending timers: %w", err)
	}
	defer rows.Close()

	return s.scanTimers(rows)
}

func (s *SQLiteStore) Schedule(ctx context.Context, fireAt time.Time, payload model.Payload, content Content) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_timers (id, alarm_id, kind, fire_at, fire_unix, title, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, payload.AlarmID, string(payload.Kind), fireAt.Format(time.RFC3339), fireAt.Unix(),
		content.Title, content.Body)
	if err != nil {
		return "", fmt.Errorf("failed to schedule timer: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Cancel(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_timers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to cancel timer %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) RequestDeliveryPermission(ctx context.Context) (bool, error) {
	return s.permission.Granted(ctx)
}

// TakeDue moves due timers to the delivered table in one transaction.
func (s *SQLiteStore) TakeDue(ctx context.Context, now time.Time) ([]Timer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, alarm_id, kind, fire_at, title, body
		FROM pending_timers WHERE fire_unix <= ? ORDER BY fire_unix ASC, id ASC
	`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query due timers: %w", err)
	}
	due, err := s.scanTimers(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	deliveredAt := now.UTC().Format(time.RFC3339)
	for _, t := range due {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO delivered_timers (id, alarm_id, kind, fire_at, title, body, delivered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.Payload.AlarmID, string(t.Payload.Kind), t.FireAt.Format(time.RFC3339),
			t.Content.Title, t.Content.Body, deliveredAt); err != nil {
			return nil, fmt.Errorf("failed to record delivered timer: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_timers WHERE id = ?`, t.ID); err != nil {
			return nil, fmt.Errorf("failed to remove due timer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit due timers: %w", err)
	}
	return due, nil
}

func (s *SQLiteStore) Delivered(ctx context.Context, id string) (Timer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, alarm_id, kind, fire_at, title, body
		FROM delivered_timers WHERE id = ?
	`, id)

	var t Timer
	var kind, fireAt string
	if err := row.Scan(&t.ID, &t.Payload.AlarmID, &kind, &fireAt, &t.Content.Title, &t.Content.Body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Timer{}, ErrNotFound
		}
		return Timer{}, fmt.Errorf("failed to get delivered timer: %w", err)
	}
	t.Payload.Kind = model.Kind(kind)
	at, err := s.parseTime(fireAt)
	if err != nil {
		return Timer{}, fmt.Errorf("delivered timer %s: %w", t.ID, err)
	}
	t.FireAt = at
	return t, nil
}

// PruneDelivered drops delivered timers older than cutoff.
func (s *SQLiteStore) PruneDelivered(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM delivered_timers WHERE delivered_at < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune delivered timers: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned timers: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) scanTimers(rows *sql.Rows) ([]Timer, error) {
	var timers []Timer
	for rows.Next() {
		var t Timer
		var kind, fireAt string
		if err := rows.Scan(&t.ID, &t.Payload.AlarmID, &kind, &fireAt, &t.Content.Title, &t.Content.Body); err != nil {
			return nil, fmt.Errorf("failed to scan timer: %w", err)
		}
		t.Payload.Kind = model.Kind(kind)
		at, err := s.parseTime(fireAt)
		if err != nil {
			return nil, fmt.Errorf("timer %s: %w", t.ID, err)
		}
		t.FireAt = at
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

func (s *SQLiteStore) parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad fire_at %q: %w", v, err)
	}
	return t.In(s.loc), nil
}
