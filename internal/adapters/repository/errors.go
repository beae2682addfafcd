package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicatePayout = errors.New("payout with the same league, position, period and winner exists")
	ErrTxDone          = errors.New("transaction already committed or rolled back")
	ErrInvalidRecord   = errors.New("invalid record")
)
