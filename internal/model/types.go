package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength is the longest title accepted for an alarm, in characters.
const MaxTitleLength = 50

// DefaultVerificationDelay is applied when an alarm is created without one.
const DefaultVerificationDelay = "10 minutes"

// Kind discriminates the two timers armed for every occurrence.
type Kind string

const (
	KindAlarm        Kind = "alarm"
	KindVerification Kind = "verification"
)

// Valid reports whether k is a known timer kind.
func (k Kind) Valid() bool {
	return k == KindAlarm || k == KindVerification
}

// Payload is the opaque data attached to every pending timer.
type Payload struct {
	AlarmID string `json:"alarmId"`
	Kind    Kind   `json:"type"`
}

// Alarm is a user-defined recurring reminder rule.
type Alarm struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Title             string    `json:"title"`
	Time              TimeOfDay `json:"time"`
	Weekdays          Weekdays  `json:"days_of_week"`
	VerificationDelay string    `json:"verification_delay"`
	Active            bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Validate checks the fields a user can edit.
func (a *Alarm) Validate() error {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", ErrValidation, MaxTitleLength)
	}
	if err := a.Time.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(a.Weekdays) == 0 {
		return fmt.Errorf("%w: select at least one day", ErrValidation)
	}
	if err := a.Weekdays.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := ParseDelay(a.VerificationDelay); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Delay returns the parsed verification delay.
func (a *Alarm) Delay() (time.Duration, error) {
	return ParseDelay(a.VerificationDelay)
}

// Completion is the per-day record of a confirmed verification.
type Completion struct {
	AlarmID     string     `json:"alarm_id"`
	UserID      string     `json:"user_id"`
	Date        string     `json:"date"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DateLayout is the calendar-date format completions are keyed by.
const DateLayout = "2006-01-02"
