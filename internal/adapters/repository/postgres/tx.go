package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/okian/payday/internal/adapters/repository"
	"github.com/okian/payday/internal/domain/model"
)

// tx implements repository.Tx on an open pgx transaction.
type tx struct {
	q      querier
	locked map[string]bool
}

// lockLeague serializes transactions touching the same league until commit.
func (t *tx) lockLeague(ctx context.Context, leagueID string) error {
	if t.locked[leagueID] {
		return nil
	}
	if _, err := t.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, leagueID); err != nil {
		return mapError(err, "lock league %s", leagueID)
	}
	t.locked[leagueID] = true
	return nil
}

func (t *tx) Payout(ctx context.Context, id string) (model.Payout, error) {
	var leagueID string
	if err := t.q.QueryRow(ctx, `SELECT league_id FROM payouts WHERE id = $1`, id).Scan(&leagueID); err != nil {
		return model.Payout{}, mapError(err, "payout %s", id)
	}
	if err := t.lockLeague(ctx, leagueID); err != nil {
		return model.Payout{}, err
	}
	// re-read after the lock; a concurrent cycle may have changed or removed it
	rows, err := t.q.Query(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	if err != nil {
		return model.Payout{}, mapError(err, "payout %s", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayout)
	return p, mapError(err, "payout %s", id)
}

func (t *tx) RelatedPayouts(ctx context.Context, p model.Payout) ([]model.Payout, error) {
	return queryPayouts(ctx, t.q, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE league_id = $1 AND start_date = $2 AND end_date = $3 AND position <> $4 AND id <> $5
		ORDER BY position, id`,
		p.LeagueID, model.Date(p.StartDate), model.Date(p.EndDate), p.Position, p.ID)
}

func (t *tx) FuturePayouts(ctx context.Context, p model.Payout) ([]model.Payout, error) {
	return queryPayouts(ctx, t.q, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE league_id = $1 AND position = $2 AND start_date > $3
			AND winner IS NULL AND NOT paid_out
		ORDER BY start_date, end_date, id`,
		p.LeagueID, p.Position, model.Date(p.EndDate))
}

func (t *tx) SavePayout(ctx context.Context, p model.Payout) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE payouts SET
			league_id = $2, name = $3, position = $4, start_date = $5, end_date = $6,
			amount = $7::numeric, winner = $8, paid_out = $9
		WHERE id = $1`, payoutArgs(p)...)
	if err != nil {
		return mapError(err, "save payout %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout %s: %w", p.ID, repository.ErrNotFound)
	}
	return nil
}

func (t *tx) InsertPayout(ctx context.Context, p model.Payout) (model.Payout, error) {
	p.ID = uuid.NewString()
	_, err := t.q.Exec(ctx, `
		INSERT INTO payouts (id, league_id, name, position, start_date, end_date, amount, winner, paid_out)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)`, payoutArgs(p)...)
	if err != nil {
		return model.Payout{}, mapError(err, "insert payout for %s", p.LeagueID)
	}
	return p, nil
}

func (t *tx) DeletePayout(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM payouts WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete payout %s", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout %s: %w", id, repository.ErrNotFound)
	}
	return nil
}
