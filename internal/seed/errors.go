package seed

import "errors"

// Sentinel kinds for fixture errors.
var (
	ErrInvalidFixture = errors.New("invalid fixture")
	ErrUnknownLeague  = errors.New("league not in fixture")
)
