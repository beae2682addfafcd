// Package types contains common types used across the application
package types

import "github.com/okian/payday/internal/domain/model"

// Standing represents a league table row
type Standing struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	TeamName      string `json:"team_name"`
	Score         int    `json:"score"`
	PaidEntry     bool   `json:"paid_entry"`
}

// Standings builds the table rows of ranked participants, taking team names
// from the league's entrants.
func Standings(league model.League, ranked []model.RankedParticipant) []Standing {
	out := make([]Standing, 0, len(ranked))
	for _, r := range ranked {
		s := Standing{
			Rank:          r.Rank,
			ParticipantID: r.ID,
			Score:         r.Score,
			PaidEntry:     r.PaidEntry,
		}
		if e, ok := league.Entrant(r.ID); ok {
			s.TeamName = e.TeamName
		}
		out = append(out, s)
	}
	return out
}
