package store

import "errors"

var (
	// The uid of an added event is already taken by another series
	ErrDuplicateUID = errors.New("event uid already exists")
	// No series or occurrence matches the given uid / recurrence id
	ErrEventNotFound = errors.New("event not found")
	// The recurrence range does not fit the operation, e.g.
	// THIS_AND_FUTURE without a recurrence id
	ErrInvalidRange = errors.New("invalid recurrence range")
)

// Malformed event fields, rejected before any mutation
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid event: " + e.Reason
}
