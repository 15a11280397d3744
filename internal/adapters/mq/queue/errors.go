package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrClosed = errors.New("replace queue closed")
	ErrFull   = errors.New("replace queue full")
)
