package engine

import "errors"

var (
	// ErrPermissionDenied means notification delivery is not permitted; the
	// user has to grant it before anything can be scheduled.
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrStoreFailure wraps a failed timer store call. It is retryable:
	// scheduling again converges to the correct timer set.
	ErrStoreFailure = errors.New("timer store failure")
	// ErrAlarmInactive is returned when re-arming an alarm that has been
	// disabled or deleted since its timer was armed.
	ErrAlarmInactive = errors.New("alarm is inactive")
	// ErrTimerSuperseded is returned when re-arming a timer whose alarm was
	// edited after it fired. The alarm's current timer set replaces it.
	ErrTimerSuperseded = errors.New("timer superseded by alarm edit")
)
