package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpec reports a malformed descriptor spec at construction.
	ErrInvalidSpec = errors.New("invalid descriptor spec")

	// ErrChainNotAllowedOnInput reports an attempt to chain from a node's
	// stdin. Chain links may only originate from output descriptors.
	ErrChainNotAllowedOnInput = errors.New("chain link not allowed on stdin")

	// ErrUnknownFilter reports removal of a filter ID that was never added
	// (or was already removed).
	ErrUnknownFilter = errors.New("unknown filter")
)

// SpawnError reports a failure to launch a chain member. Spawning is not
// retried; the whole chain's execution aborts.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
