// Package postgres implements the repository stores on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/okian/payday/internal/adapters/repository"
	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/pkg/logger"
)

//go:embed schema.sql
var schema string

const payoutColumns = `id, league_id, name, position, start_date, end_date, amount::text, winner, paid_out`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a repository.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

var _ repository.Store = (*Store)(nil)

// Open connects to the database at url and verifies the connection.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, log: logger.Get().Named("postgres")}, nil
}

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info(ctx, "schema ready")
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// League implements repository.Ledger.
func (s *Store) League(ctx context.Context, id string) (model.League, error) {
	var l model.League
	var fee string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, kind, entry_fee::text, last_refreshed FROM leagues WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.Kind, &fee, &l.LastRefreshed)
	if err != nil {
		return model.League{}, mapError(err, "league %s", id)
	}
	if l.EntryFee, err = decimal.NewFromString(fee); err != nil {
		return model.League{}, fmt.Errorf("league %s entry fee: %w", id, err)
	}
	entrants, err := s.entrants(ctx, id)
	if err != nil {
		return model.League{}, err
	}
	l.Entrants = entrants[id]
	return l, nil
}

// Leagues implements repository.Ledger.
func (s *Store) Leagues(ctx context.Context) ([]model.League, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, kind, entry_fee::text, last_refreshed FROM leagues ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list leagues")
	}
	leagues, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.League, error) {
		var l model.League
		var fee string
		if err := row.Scan(&l.ID, &l.Name, &l.Kind, &fee, &l.LastRefreshed); err != nil {
			return l, err
		}
		var err error
		l.EntryFee, err = decimal.NewFromString(fee)
		return l, err
	})
	if err != nil {
		return nil, mapError(err, "scan leagues")
	}

	entrants, err := s.entrants(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range leagues {
		leagues[i].Entrants = entrants[leagues[i].ID]
	}
	return leagues, nil
}

// entrants loads entrants grouped by league; an empty leagueID loads all.
func (s *Store) entrants(ctx context.Context, leagueID string) (map[string][]model.Entrant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT league_id, participant_id, team_name, paid_entry FROM entrants
		WHERE $1 = '' OR league_id = $1
		ORDER BY league_id, participant_id`, leagueID)
	if err != nil {
		return nil, mapError(err, "list entrants")
	}
	defer rows.Close()

	out := make(map[string][]model.Entrant)
	for rows.Next() {
		var league string
		var e model.Entrant
		if err := rows.Scan(&league, &e.ParticipantID, &e.TeamName, &e.PaidEntry); err != nil {
			return nil, mapError(err, "scan entrant")
		}
		out[league] = append(out[league], e)
	}
	return out, mapError(rows.Err(), "list entrants")
}

// MarkRefreshed implements repository.Ledger.
func (s *Store) MarkRefreshed(ctx context.Context, leagueID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE leagues SET last_refreshed = $2 WHERE id = $1`, leagueID, at.UTC())
	if err != nil {
		return mapError(err, "mark league %s refreshed", leagueID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("league %s: %w", leagueID, repository.ErrNotFound)
	}
	return nil
}

// UnfinalizedPayouts implements repository.Ledger.
func (s *Store) UnfinalizedPayouts(ctx context.Context, leagueID string, cutoff time.Time) ([]model.Payout, error) {
	return queryPayouts(ctx, s.pool, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE league_id = $1 AND winner IS NULL AND NOT paid_out AND end_date <= $2
		ORDER BY start_date, end_date, position, id`, leagueID, model.Date(cutoff))
}

// Payouts implements repository.Ledger.
func (s *Store) Payouts(ctx context.Context, leagueID string) ([]model.Payout, error) {
	return queryPayouts(ctx, s.pool, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE league_id = $1
		ORDER BY start_date, end_date, position, id`, leagueID)
}

// InTx implements repository.Ledger. The transaction takes a per-league
// advisory lock on the first payout it reads, so concurrent cycles of the
// same league are serialized.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(pgtx pgx.Tx) error {
		return fn(ctx, &tx{q: pgtx, locked: make(map[string]bool)})
	})
}

// UpsertLeague implements repository.Writer. Entrants are replaced.
func (s *Store) UpsertLeague(ctx context.Context, l model.League) error {
	return pgx.BeginFunc(ctx, s.pool, func(t pgx.Tx) error {
		_, err := t.Exec(ctx, `
			INSERT INTO leagues (id, name, kind, entry_fee, last_refreshed)
			VALUES ($1, $2, $3, $4::numeric, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				kind = EXCLUDED.kind,
				entry_fee = EXCLUDED.entry_fee,
				last_refreshed = COALESCE(EXCLUDED.last_refreshed, leagues.last_refreshed)`,
			l.ID, l.Name, string(l.Kind), l.EntryFee.StringFixed(2), l.LastRefreshed)
		if err != nil {
			return mapError(err, "upsert league %s", l.ID)
		}
		if _, err := t.Exec(ctx, `DELETE FROM entrants WHERE league_id = $1`, l.ID); err != nil {
			return mapError(err, "clear entrants of %s", l.ID)
		}
		for _, e := range l.Entrants {
			_, err := t.Exec(ctx,
				`INSERT INTO entrants (league_id, participant_id, team_name, paid_entry) VALUES ($1, $2, $3, $4)`,
				l.ID, e.ParticipantID, e.TeamName, e.PaidEntry)
			if err != nil {
				return mapError(err, "insert entrant %s of %s", e.ParticipantID, l.ID)
			}
		}
		return nil
	})
}

// UpsertGameweek implements repository.Writer.
func (s *Store) UpsertGameweek(ctx context.Context, gw model.Gameweek) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gameweeks (number, start_date, end_date) VALUES ($1, $2, $3)
		ON CONFLICT (number) DO UPDATE SET start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date`,
		gw.Number, gw.StartDate, gw.EndDate)
	return mapError(err, "upsert gameweek %d", gw.Number)
}

// UpsertPerformance implements repository.Writer.
func (s *Store) UpsertPerformance(ctx context.Context, p model.Performance) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO performances (participant_id, gameweek, points, transfer_cost) VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_id, gameweek) DO UPDATE SET
			points = EXCLUDED.points, transfer_cost = EXCLUDED.transfer_cost`,
		p.ParticipantID, p.Gameweek, p.Points, p.TransferCost)
	return mapError(err, "upsert performance %s/%d", p.ParticipantID, p.Gameweek)
}

// UpsertMatch implements repository.Writer.
func (s *Store) UpsertMatch(ctx context.Context, m model.Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO matches (id, league_id, gameweek, home, away, home_score, away_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			league_id = EXCLUDED.league_id, gameweek = EXCLUDED.gameweek,
			home = EXCLUDED.home, away = EXCLUDED.away,
			home_score = EXCLUDED.home_score, away_score = EXCLUDED.away_score`,
		m.ID, m.LeagueID, m.Gameweek, m.Home, m.Away, m.HomeScore, m.AwayScore)
	return mapError(err, "upsert match %s", m.ID)
}

// UpsertPayout implements repository.Writer.
func (s *Store) UpsertPayout(ctx context.Context, p model.Payout) (model.Payout, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payouts (id, league_id, name, position, start_date, end_date, amount, winner, paid_out)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, position = EXCLUDED.position,
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
			amount = EXCLUDED.amount, winner = EXCLUDED.winner, paid_out = EXCLUDED.paid_out`,
		payoutArgs(p)...)
	if err != nil {
		return model.Payout{}, mapError(err, "upsert payout %s", p.ID)
	}
	return p, nil
}

// Gameweeks implements ranking.PerformanceReader.
func (s *Store) Gameweeks(ctx context.Context) ([]model.Gameweek, error) {
	rows, err := s.pool.Query(ctx, `SELECT number, start_date, end_date FROM gameweeks ORDER BY number`)
	if err != nil {
		return nil, mapError(err, "list gameweeks")
	}
	gws, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Gameweek, error) {
		var gw model.Gameweek
		err := row.Scan(&gw.Number, &gw.StartDate, &gw.EndDate)
		return gw, err
	})
	return gws, mapError(err, "scan gameweeks")
}

// Performances implements ranking.PerformanceReader.
func (s *Store) Performances(ctx context.Context, participantIDs []string, gameweeks []int) ([]model.Performance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT participant_id, gameweek, points, transfer_cost FROM performances
		WHERE participant_id = ANY($1) AND gameweek = ANY($2::integer[])
		ORDER BY participant_id, gameweek`, participantIDs, gameweeks)
	if err != nil {
		return nil, mapError(err, "list performances")
	}
	perfs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Performance, error) {
		var p model.Performance
		err := row.Scan(&p.ParticipantID, &p.Gameweek, &p.Points, &p.TransferCost)
		return p, err
	})
	return perfs, mapError(err, "scan performances")
}

// Matches implements ranking.PerformanceReader.
func (s *Store) Matches(ctx context.Context, leagueID string, gameweeks []int) ([]model.Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, league_id, gameweek, home, away, home_score, away_score FROM matches
		WHERE league_id = $1 AND gameweek = ANY($2::integer[])
		ORDER BY gameweek, id`, leagueID, gameweeks)
	if err != nil {
		return nil, mapError(err, "list matches")
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Match, error) {
		var m model.Match
		err := row.Scan(&m.ID, &m.LeagueID, &m.Gameweek, &m.Home, &m.Away, &m.HomeScore, &m.AwayScore)
		return m, err
	})
	return matches, mapError(err, "scan matches")
}

func payoutArgs(p model.Payout) []any {
	return []any{
		p.ID, p.LeagueID, p.Name, p.Position,
		model.Date(p.StartDate), model.Date(p.EndDate),
		p.Amount.StringFixed(2), p.Winner, p.PaidOut,
	}
}

func queryPayouts(ctx context.Context, q querier, sql string, args ...any) ([]model.Payout, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query payouts")
	}
	payouts, err := pgx.CollectRows(rows, scanPayout)
	return payouts, mapError(err, "scan payouts")
}

func scanPayout(row pgx.CollectableRow) (model.Payout, error) {
	var p model.Payout
	var amount string
	err := row.Scan(&p.ID, &p.LeagueID, &p.Name, &p.Position, &p.StartDate, &p.EndDate, &amount, &p.Winner, &p.PaidOut)
	if err != nil {
		return p, err
	}
	p.Amount, err = decimal.NewFromString(amount)
	return p, err
}
