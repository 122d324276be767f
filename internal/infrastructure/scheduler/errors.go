package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when the sweep interval is not positive
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSweepFailed wraps failures of a single alert sweep
	ErrSweepFailed = errors.New("alert sweep failed")
)
