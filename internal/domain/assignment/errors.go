package assignment

import "errors"

// ErrInvalidEvent is returned when the event itself cannot be evaluated:
// missing date or unparsable or inverted times.
var ErrInvalidEvent = errors.New("assignment: invalid event")
