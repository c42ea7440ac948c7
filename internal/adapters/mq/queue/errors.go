package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrQueueFull   = errors.New("execution queue is full")
	ErrQueueClosed = errors.New("execution queue is closed")
)
