package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrEmptyInput      = errors.New("no participants to rank")
	ErrUnsorted        = errors.New("participants not ordered by score descending")
	ErrUnknownKind     = errors.New("no ranking source for league kind")
	ErrInvalidCacheCap = errors.New("invalid ranking cache size")
)
