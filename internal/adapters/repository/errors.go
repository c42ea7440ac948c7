package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("record conflicts with existing state")
	ErrUnknownDriver   = errors.New("unknown store driver")
	ErrInvalidArgument = errors.New("invalid store argument")
)
