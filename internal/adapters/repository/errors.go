package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrClosed      = errors.New("ranking store closed")
	ErrTransaction = errors.New("ranking store transaction failed")
)
