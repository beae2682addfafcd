// Package ranking orders league participants for a period and assigns dense
// competition ranks.
package ranking

import (
	"fmt"

	"github.com/okian/payday/internal/domain/model"
)

// AssignRanks converts a score-descending list into ranked participants.
// Ties share a rank and the next distinct score gets the following rank, so
// scores [50, 50, 30] rank as [1, 1, 2]. The input is not re-sorted; an
// ascending step returns ErrUnsorted.
func AssignRanks(participants []model.Participant) ([]model.RankedParticipant, error) {
	if len(participants) == 0 {
		return nil, ErrEmptyInput
	}

	ranked := make([]model.RankedParticipant, len(participants))
	rank := 0
	var last *int
	for i, p := range participants {
		if last == nil || p.Score != *last {
			if last != nil && p.Score > *last {
				return nil, fmt.Errorf("%w: %s scores %d after %d", ErrUnsorted, p.ID, p.Score, *last)
			}
			rank++
			score := p.Score
			last = &score
		}
		ranked[i] = model.RankedParticipant{Participant: p, Rank: rank}
	}
	return ranked, nil
}

// AtRank returns the participants holding rank.
func AtRank(ranked []model.RankedParticipant, rank int) []model.RankedParticipant {
	var out []model.RankedParticipant
	for _, r := range ranked {
		if r.Rank == rank {
			out = append(out, r)
		}
	}
	return out
}

// PaidOnly drops participants who have not paid their league entry. Used for
// standings display; payout resolution ranks every participant.
func PaidOnly(ranked []model.RankedParticipant) []model.RankedParticipant {
	out := make([]model.RankedParticipant, 0, len(ranked))
	for _, r := range ranked {
		if r.PaidEntry {
			out = append(out, r)
		}
	}
	return out
}
