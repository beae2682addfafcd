// Package repository defines the payout ledger and league data stores.
package repository

import (
	"context"
	"time"

	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/ranking"
)

// Ledger provides transactional access to a league's payouts.
type Ledger interface {
	// League returns a league with its entrants.
	// Returns ErrNotFound if the league is unknown.
	League(ctx context.Context, id string) (model.League, error)
	// Leagues returns every league ordered by id.
	Leagues(ctx context.Context) ([]model.League, error)
	// MarkRefreshed records when league data was last refreshed.
	MarkRefreshed(ctx context.Context, leagueID string, at time.Time) error

	// UnfinalizedPayouts returns payouts of a league without a winner, not
	// paid out and ending on or before cutoff, ordered by start then end date.
	UnfinalizedPayouts(ctx context.Context, leagueID string, cutoff time.Time) ([]model.Payout, error)
	// Payouts returns every payout of a league ordered by period and position.
	Payouts(ctx context.Context, leagueID string) ([]model.Payout, error)

	// InTx runs fn in a transaction. fn's writes commit together when it
	// returns nil and are discarded otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the ledger inside one transaction.
type Tx interface {
	// Payout re-reads a payout. Returns ErrNotFound if it was deleted.
	Payout(ctx context.Context, id string) (model.Payout, error)
	// RelatedPayouts returns the league's other payouts with exactly p's
	// period and a different position, ordered by position.
	RelatedPayouts(ctx context.Context, p model.Payout) ([]model.Payout, error)
	// FuturePayouts returns the league's unfinalized payouts for p's
	// position starting after p ends, ordered by start then end date.
	FuturePayouts(ctx context.Context, p model.Payout) ([]model.Payout, error)

	// SavePayout overwrites an existing payout.
	SavePayout(ctx context.Context, p model.Payout) error
	// InsertPayout stores a new payout and returns it with its id.
	InsertPayout(ctx context.Context, p model.Payout) (model.Payout, error)
	// DeletePayout removes a payout.
	DeletePayout(ctx context.Context, id string) error
}

// Writer loads league data fetched from the upstream source.
type Writer interface {
	UpsertLeague(ctx context.Context, l model.League) error
	UpsertGameweek(ctx context.Context, gw model.Gameweek) error
	UpsertPerformance(ctx context.Context, p model.Performance) error
	UpsertMatch(ctx context.Context, m model.Match) error
	// UpsertPayout creates or replaces a scheduled payout. An empty id is
	// assigned by the store.
	UpsertPayout(ctx context.Context, p model.Payout) (model.Payout, error)
}

// Store is the full storage surface used by the application.
type Store interface {
	Ledger
	Writer
	ranking.PerformanceReader
	Close()
}
