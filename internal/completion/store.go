// Package completion records per-day verification outcomes.
package completion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notexe/habit-alarm/internal/model"
)

var (
	// ErrPersistence wraps any failed completion write or read.
	ErrPersistence = errors.New("completion persistence failure")
	ErrNotFound    = errors.New("completion not found")
)

// Store persists completions keyed by (alarm, date, owner).
type Store struct {
	db     *sql.DB
	userID string
	now    func() time.Time
}

// NewStore creates the completions table on db. Records are written for
// userID.
func NewStore(db *sql.DB, userID string, now func() time.Time) (*Store, error) {
	if now == nil {
		now = time.Now
	}
	if err := createTable(db); err != nil {
		return nil, err
	}
	return &Store{db: db, userID: userID, now: now}, nil
}

func createTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alarm_completions (
			id           TEXT    PRIMARY KEY,
			alarm_id     TEXT    NOT NULL,
			user_id      TEXT    NOT NULL,
			date         TEXT    NOT NULL,
			completed    INTEGER NOT NULL DEFAULT 0,
			completed_at TEXT,
			created_at   TEXT    NOT NULL,
			UNIQUE (alarm_id, date, user_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create completions table: %w", err)
	}
	return nil
}

// RecordCompletion upserts the outcome for alarmID on date (YYYY-MM-DD).
// Recording the same day twice overwrites completed_at.
func (s *Store) RecordCompletion(ctx context.Context, alarmID, date string, completed bool) error {
	c := model.Completion{
		AlarmID:   alarmID,
		UserID:    s.userID,
		Date:      date,
		Completed: completed,
	}
	if completed {
		at := s.now()
		c.CompletedAt = &at
	}
	return s.Upsert(ctx, c)
}

// Upsert writes c, replacing any record with the same key.
func (s *Store) Upsert(ctx context.Context, c model.Completion) error {
	if c.AlarmID == "" {
		return fmt.Errorf("%w: alarm id is required", model.ErrValidation)
	}
	if _, err := time.Parse(model.DateLayout, c.Date); err != nil {
		return fmt.Errorf("%w: invalid date %q", model.ErrValidation, c.Date)
	}
	if c.UserID == "" {
		c.UserID = s.userID
	}

	var completedAt sql.NullString
	if c.CompletedAt != nil {
		completedAt = sql.NullString{String: c.CompletedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alarm_completions (id, alarm_id, user_id, date, completed, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (alarm_id, date, user_id) DO UPDATE SET
			completed    = excluded.completed,
			completed_at = excluded.completed_at
	`, uuid.New().String(), c.AlarmID, c.UserID, c.Date, c.Completed, completedAt,
		s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: upsert %s/%s: %w", ErrPersistence, c.AlarmID, c.Date, err)
	}
	return nil
}

// Get returns the record for alarmID on date.
func (s *Store) Get(ctx context.Context, alarmID, date string) (*model.Completion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT alarm_id, user_id, date, completed, completed_at, created_at
		FROM alarm_completions WHERE alarm_id = ? AND date = ? AND user_id = ?
	`, alarmID, date, s.userID)

	c, err := scanCompletion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return c, nil
}

// History returns the records for alarmID with from <= date <= to, oldest
// first.
func (s *Store) History(ctx context.Context, alarmID, from, to string) ([]model.Completion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alarm_id, user_id, date, completed, completed_at, created_at
		FROM alarm_completions
		WHERE alarm_id = ? AND user_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, alarmID, s.userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: history: %w", ErrPersistence, err)
	}
	defer rows.Close()

	var out []model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompletion(row scanner) (*model.Completion, error) {
	var c model.Completion
	var completedAt sql.NullString
	var createdAt string

	if err := row.Scan(&c.AlarmID, &c.UserID, &c.Date, &c.Completed, &completedAt, &createdAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("completion %s@%s: bad completed_at %q: %w", c.AlarmID, c.Date, completedAt.String, err)
		}
		c.CompletedAt = &t
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("completion %s@%s: bad created_at %q: %w", c.AlarmID, c.Date, createdAt, err)
	}
	c.CreatedAt = created
	return &c, nil
}
