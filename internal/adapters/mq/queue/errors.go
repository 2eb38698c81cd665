package queue

import "errors"

// Sentinel errors returned by Enqueue.
var (
	ErrClosed = errors.New("notification queue closed")
	ErrFull   = errors.New("notification queue full")
)
