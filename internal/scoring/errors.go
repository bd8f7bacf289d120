package scoring

import "errors"

var (
	// ErrJobTerminal is returned when a run is requested against a
	// completed, cancelled, or failed job without an explicit retry.
	ErrJobTerminal = errors.New("job already in terminal state")
)
