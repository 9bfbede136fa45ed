package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxVerificationDelay bounds how long after an alarm its verification
// prompt may fire.
const MaxVerificationDelay = 24 * time.Hour

// ParseDelay reads the leading integer of a free-text duration expression
// such as "10 minutes" and returns it as minutes. Anything after the number
// is ignored. Delays above MaxVerificationDelay are rejected.
func ParseDelay(expr string) (time.Duration, error) {
	s := strings.TrimSpace(expr)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %q has no leading minute count", ErrInvalidDelay, expr)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDelay, expr, err)
	}
	if n > int(MaxVerificationDelay/time.Minute) {
		return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidDelay, expr, MaxVerificationDelay)
	}
	return time.Duration(n) * time.Minute, nil
}
