package alarm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notexe/habit-alarm/internal/model"
)

var ErrNotFound = errors.New("alarm not found")

// Store provides SQLite-backed storage for one user's alarms.
type Store struct {
	db     *sql.DB
	userID string
	now    func() time.Time
}

// NewStore ensures the alarms table exists on db and scopes every query to
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
		CREATE TABLE IF NOT EXISTS alarms (
			id                 TEXT    PRIMARY KEY,
			user_id            TEXT    NOT NULL,
			title              TEXT    NOT NULL,
			time               TEXT    NOT NULL,
			days_of_week       TEXT    NOT NULL DEFAULT '[]',
			verification_delay TEXT    NOT NULL DEFAULT '10 minutes',
			is_active          INTEGER NOT NULL DEFAULT 1,
			created_at         TEXT    NOT NULL,
			updated_at         TEXT    NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create alarms table: %w", err)
	}
	return nil
}

const selectColumns = `id, user_id, title, time, days_of_week, verification_delay, is_active, created_at, updated_at`

// Add inserts a new alarm and returns it with its assigned ID.
func (s *Store) Add(ctx context.Context, a model.Alarm) (*model.Alarm, error) {
	now := s.now().UTC()
	a.ID = uuid.New().String()
	a.UserID = s.userID
	a.Weekdays = a.Weekdays.Normalize()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.VerificationDelay == "" {
		a.VerificationDelay = model.DefaultVerificationDelay
	}

	days, err := json.Marshal(a.Weekdays.Ints())
	if err != nil {
		return nil, fmt.Errorf("failed to encode days: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alarms (id, user_id, title, time, days_of_week, verification_delay, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.Title, a.Time.String(), string(days), a.VerificationDelay, a.Active,
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to insert alarm: %w", err)
	}
	return &a, nil
}

// List returns the user's alarms ordered by time of day.
func (s *Store) List(ctx context.Context) ([]model.Alarm, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM alarms WHERE user_id = ? ORDER BY time ASC, created_at ASC
	`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}
	defer rows.Close()

	var alarms []model.Alarm
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, *a)
	}
	return alarms, rows.Err()
}

// GetByID returns a single alarm.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Alarm, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM alarms WHERE id = ? AND user_id = ?
	`, id, s.userID)

	a, err := scanAlarm(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return a, nil
}

// Save writes every editable field of a.
func (s *Store) Save(ctx context.Context, a model.Alarm) (*model.Alarm, error) {
	a.Weekdays = a.Weekdays.Normalize()
	a.UpdatedAt = s.now().UTC()

	days, err := json.Marshal(a.Weekdays.Ints())
	if err != nil {
		return nil, fmt.Errorf("failed to encode days: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE alarms
		SET title = ?, time = ?, days_of_week = ?, verification_delay = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, a.Title, a.Time.String(), string(days), a.VerificationDelay, a.Active,
		a.UpdatedAt.Format(time.RFC3339), a.ID, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update alarm: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update alarm: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	}
	return s.GetByID(ctx, a.ID)
}

// Delete removes an alarm by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE id = ? AND user_id = ?`, id, s.userID)
	if err != nil {
		return fmt.Errorf("failed to delete alarm: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete alarm: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Current returns the stored alarm, or nil when it does not exist.
func (s *Store) Current(ctx context.Context, id string) (*model.Alarm, error) {
	a, err := s.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row scanner) (*model.Alarm, error) {
	var a model.Alarm
	var tod, days, createdAt, updatedAt string

	if err := row.Scan(&a.ID, &a.UserID, &a.Title, &tod, &days,
		&a.VerificationDelay, &a.Active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan alarm: %w", err)
	}

	parsed, err := model.ParseTimeOfDay(tod)
	if err != nil {
		return nil, fmt.Errorf("alarm %s: %w", a.ID, err)
	}
	a.Time = parsed

	var ints []int
	if err := json.Unmarshal([]byte(days), &ints); err != nil {
		return nil, fmt.Errorf("alarm %s: bad days_of_week %q: %w", a.ID, days, err)
	}
	a.Weekdays = model.WeekdaysFromInts(ints)

	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("alarm %s: bad created_at %q: %w", a.ID, createdAt, err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("alarm %s: bad updated_at %q: %w", a.ID, updatedAt, err)
	}
	return &a, nil
}
