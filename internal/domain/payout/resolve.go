// Package payout decides who wins a league payout and how the payout ledger
// changes as a result.
package payout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/ranking"
)

// Kind classifies a resolution.
type Kind string

const (
	// Single means one participant held the position and won the full amount.
	Single Kind = "single_winner"
	// Split means tied participants shared the amount.
	Split Kind = "split"
	// Deferred means the tie was rolled into the next payout of the position.
	Deferred Kind = "deferred"
)

// Outcome lists the ledger mutations a resolution produces.
type Outcome struct {
	Kind    Kind
	Updates []model.Payout // existing records to overwrite
	Inserts []model.Payout // new records, ID assigned by the ledger
	Deletes []string       // record ids to remove
	Winners []string       // participant ids receiving money now
}

// Writer is the transactional ledger surface an Outcome is applied to.
type Writer interface {
	SavePayout(ctx context.Context, p model.Payout) error
	InsertPayout(ctx context.Context, p model.Payout) (model.Payout, error)
	DeletePayout(ctx context.Context, id string) error
}

// Apply writes the outcome. It must run inside the transaction the inputs
// of Resolve were read in.
func (o Outcome) Apply(ctx context.Context, w Writer) error {
	for _, p := range o.Updates {
		if err := w.SavePayout(ctx, p); err != nil {
			return fmt.Errorf("save payout %s: %w", p.ID, err)
		}
	}
	for _, p := range o.Inserts {
		if _, err := w.InsertPayout(ctx, p); err != nil {
			return fmt.Errorf("insert payout for %s: %w", p.WinnerID(), err)
		}
	}
	for _, id := range o.Deletes {
		if err := w.DeletePayout(ctx, id); err != nil {
			return fmt.Errorf("delete payout %s: %w", id, err)
		}
	}
	return nil
}

// Total sums the amounts of the records the outcome leaves for the resolved
// payout (updates and inserts, excluding a deferred-into future payout).
func (o Outcome) Total() decimal.Decimal {
	total := decimal.Zero
	if o.Kind == Deferred {
		return total
	}
	for _, p := range o.Updates {
		total = total.Add(p.Amount)
	}
	for _, p := range o.Inserts {
		total = total.Add(p.Amount)
	}
	return total
}

// Resolve decides the winner(s) of p.
//
// related holds the league's other payouts for exactly the same period,
// ordered by position; future holds the league's payouts for the same
// position starting after p ends, ordered by start then end date; a tie is
// deferred into the first of them that is not finalized. ranked is
// the league's ranking over p's period.
//
// Resolve does not touch storage; apply the returned Outcome in the same
// transaction the inputs were read in.
func Resolve(p model.Payout, related, future []model.Payout, ranked []model.RankedParticipant) (Outcome, error) {
	if len(ranked) == 0 {
		return Outcome{}, ErrNoParticipants
	}

	// Every payout of a multi-position period must have a unique winner.
	if len(related) > 0 {
		positions := make([]int, 0, len(related)+1)
		for _, r := range related {
			positions = append(positions, r.Position)
		}
		positions = append(positions, p.Position)
		for _, q := range append(related[:len(related):len(related)], p) {
			if winners := ranking.AtRank(ranked, q.Position); len(winners) > 1 {
				return Outcome{}, &TieError{
					LeagueID:  p.LeagueID,
					Period:    p.Period(),
					Position:  q.Position,
					Tied:      ids(winners),
					Positions: positions,
				}
			}
		}
	}

	winners := ranking.AtRank(ranked, p.Position)
	switch {
	case len(winners) == 0:
		return Outcome{}, fmt.Errorf("%w: position %d, %d ranks", ErrNoWinner, p.Position, ranked[len(ranked)-1].Rank)
	case len(winners) == 1:
		resolved := p.Clone()
		resolved.Winner = &winners[0].ID
		return Outcome{Kind: Single, Updates: []model.Payout{resolved}, Winners: ids(winners)}, nil
	}
	if next, ok := nextOpen(future); ok {
		return deferTo(p, next), nil
	}
	return split(p, winners), nil
}

// nextOpen returns the first future payout still open for resolution.
func nextOpen(future []model.Payout) (model.Payout, bool) {
	for _, f := range future {
		if !f.Finalized() {
			return f, true
		}
	}
	return model.Payout{}, false
}

// deferTo folds p into next: next absorbs p's period start and amount, p
// is removed.
func deferTo(p, next model.Payout) Outcome {
	merged := next.Clone()
	merged.StartDate = p.StartDate
	merged.Amount = next.Amount.Add(p.Amount)
	return Outcome{
		Kind:    Deferred,
		Updates: []model.Payout{merged},
		Deletes: []string{p.ID},
	}
}

// split shares p among tied winners. The first winner keeps p's record and
// absorbs the rounding remainder; every other winner gets a cloned record.
func split(p model.Payout, winners []model.RankedParticipant) Outcome {
	shares := Shares(p.Amount, len(winners))

	out := Outcome{Kind: Split, Winners: ids(winners)}
	first := p.Clone()
	first.Amount = shares[0]
	first.Winner = &winners[0].ID
	out.Updates = append(out.Updates, first)

	for i, w := range winners[1:] {
		sibling := p.Clone()
		sibling.ID = ""
		sibling.Amount = shares[i+1]
		sibling.Winner = &w.ID
		out.Inserts = append(out.Inserts, sibling)
	}
	return out
}

func ids(ranked []model.RankedParticipant) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.ID
	}
	return out
}
