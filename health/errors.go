package health

import "errors"

var (
	// ErrCheckTimeout is the error of a result whose checker did not
	// return before the aggregator's deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned by Aggregator.Check for unknown names.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrDuplicateChecker is returned when registering a name twice.
	ErrDuplicateChecker = errors.New("health: checker already registered")
)
