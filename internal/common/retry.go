package common

import (
	"fmt"
	"log/slog"
)

// Guard runs op and converts a panic raised inside it into an error wrapping
// ErrPipelineFault.
func Guard(op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPipelineFault, r)
		}
	}()
	return op()
}

// WithRecovery runs op once. If it fails, reset is called with the failure and
// op runs exactly one more time. It returns the number of attempts made and the
// error of the last attempt. Panics in op are converted by Guard.
func WithRecovery(op func(attempt int) error, reset func(err error)) (int, error) {
	err := Guard(func() error { return op(1) })
	if err == nil {
		return 1, nil
	}

	slog.Debug("Attempt failed, recovering", "attempt", 1, "error", err)
	if reset != nil {
		reset(err)
	}

	if err := Guard(func() error { return op(2) }); err != nil {
		return 2, err
	}
	return 2, nil
}
