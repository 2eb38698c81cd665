package repository

import "errors"

// Sentinel errors for store operations.
var (
	ErrNotFound      = errors.New("record not found")
	ErrNotAssignable = errors.New("activity is not pending")
	ErrMissingID     = errors.New("activity id is required")
)
