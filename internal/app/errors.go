package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvariantViolation = errors.New("invariant violation")
)

// Reasons a gesture event leaves the lists untouched. They are logged, never returned to callers.
var (
	errNoDropTarget        = errors.New("no drop target")
	errSelfHover           = errors.New("hovering over self")
	errUnknownKind         = errors.New("unknown drag kind")
	errUnknownEntity       = errors.New("unknown entity")
	errNoActiveDrag        = errors.New("no active drag")
	errNotActiveEntity     = errors.New("event does not match the active drag")
	errColumnHoverDeferred = errors.New("column reorder deferred to drop")
	errAlreadyInColumn     = errors.New("task already in column")
)
