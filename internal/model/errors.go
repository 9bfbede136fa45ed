package model

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrNoWeekdays   = errors.New("no active weekdays")
	ErrInvalidDelay = errors.New("invalid verification delay")
	ErrInvalidTime  = errors.New("invalid time of day")
)
