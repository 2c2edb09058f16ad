package batch

import (
	"errors"
	"fmt"
)

var (
	ErrRunInProgress  = errors.New("a batch run is already in progress")
	ErrAborted        = errors.New("batch run aborted")
	ErrInvalidOptions = errors.New("invalid run options")

	// ErrNotApplicable is returned by a Mutation for items it leaves untouched.
	ErrNotApplicable = errors.New("mutation not applicable")
)

// AbortError is the abort signal: the success rate fell below the rollback threshold at a
// batch boundary. The run's stats and outcomes are still complete.
type AbortError struct {
	SuccessRate float64
	Threshold   float64
	Completed   int
	Remaining   int
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("batch run aborted: success rate %.2f below threshold %.2f after %d items, %d items not processed",
		e.SuccessRate, e.Threshold, e.Completed, e.Remaining)
}

func (e *AbortError) Unwrap() error {
	return ErrAborted
}

// IsAborted reports whether err signals an aborted run.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
