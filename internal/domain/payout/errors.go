package payout

import (
	"errors"
	"fmt"

	"github.com/okian/payday/internal/domain/model"
)

// Sentinel kinds for payout resolution errors.
var (
	// ErrNoParticipants means the ranking snapshot was empty; retry on a later cycle.
	ErrNoParticipants = errors.New("cannot calculate payout without participating managers")
	// ErrNoWinner means nobody holds the payout's position; retry on a later cycle.
	ErrNoWinner = errors.New("no participant holds the payout position")
	// ErrUnresolvableTie means a tie spans a period with several positions and
	// must be resolved manually.
	ErrUnresolvableTie = errors.New("payouts with multiple positions involving ties must be manually resolved")
)

// TieError details an unresolvable multi-position tie.
type TieError struct {
	LeagueID  string
	Period    model.Period
	Position  int
	Tied      []string
	Positions []int
}

func (e *TieError) Error() string {
	return fmt.Sprintf("%s: league %s period %s position %d tied between %v (positions %v)",
		ErrUnresolvableTie, e.LeagueID, e.Period, e.Position, e.Tied, e.Positions)
}

// Unwrap lets errors.Is match ErrUnresolvableTie.
func (e *TieError) Unwrap() error {
	return ErrUnresolvableTie
}
