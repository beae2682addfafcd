package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LeagueKind selects how participants are scored for a period.
type LeagueKind string

const (
	// KindClassic ranks by cumulative gameweek points.
	KindClassic LeagueKind = "classic"
	// KindHeadToHead ranks by match points (win 3, draw 1, loss 0).
	KindHeadToHead LeagueKind = "head_to_head"
)

// Valid reports whether k is a known league kind.
func (k LeagueKind) Valid() bool {
	return k == KindClassic || k == KindHeadToHead
}

// League owns a season's payouts and its entrants.
type League struct {
	ID            string
	Name          string
	Kind          LeagueKind
	EntryFee      decimal.Decimal
	Entrants      []Entrant
	LastRefreshed *time.Time
}

// Entrant is a participant registered in a league.
type Entrant struct {
	ParticipantID string
	TeamName      string
	PaidEntry     bool
}

// Entrant looks up an entrant by participant id.
func (l League) Entrant(participantID string) (Entrant, bool) {
	for _, e := range l.Entrants {
		if e.ParticipantID == participantID {
			return e, true
		}
	}
	return Entrant{}, false
}

// NeedsRefresh reports whether league data is older than staleAfter, or was
// never refreshed.
func (l League) NeedsRefresh(now time.Time, staleAfter time.Duration) bool {
	if l.LastRefreshed == nil {
		return true
	}
	return now.Sub(*l.LastRefreshed) > staleAfter
}
