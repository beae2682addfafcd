package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/payday/internal/adapters/repository"
	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/payout"
	"github.com/okian/payday/internal/domain/ranking"
	"github.com/okian/payday/pkg/logger"
	"github.com/okian/payday/pkg/metrics"
)

// Skip reasons.
const (
	ReasonEmptyInput     = "empty_input"
	ReasonNoParticipants = "no_participants"
	ReasonNoWinner       = "no_winner"
	ReasonFinalized      = "finalized"
)

// CycleReport summarizes one league cycle.
type CycleReport struct {
	LeagueID  string
	Cutoff    time.Time // zero when no gameweek has finished yet
	Refreshed bool
	Resolved  []Resolution
	Skipped   []Skip
	StartedAt time.Time
	Duration  time.Duration
}

// Resolution records a payout decided in a cycle.
type Resolution struct {
	PayoutID string
	Position int
	Period   model.Period
	Outcome  payout.Kind
	Winners  []string
	Amount   decimal.Decimal // amount of the payout as resolved, before any split
}

// Skip records a payout left for a later cycle.
type Skip struct {
	PayoutID string
	Reason   string
	Err      error
}

// ProcessPeriodPayouts runs one cycle for a league: refresh stale data,
// compute the cutoff and resolve every unfinalized payout ending on or
// before it, in period order. Each payout is resolved in its own
// transaction against a fresh read of the record.
//
// Payouts without a ranking, participants or a holder of their position
// are skipped. An unresolvable tie aborts the cycle with the error; payouts
// already resolved in the cycle stay resolved.
func (s *Service) ProcessPeriodPayouts(ctx context.Context, leagueID string) (CycleReport, error) {
	if !s.guard.TryAcquire(ctx, leagueID) {
		return CycleReport{}, fmt.Errorf("%w: %s", ErrLeagueBusy, leagueID)
	}
	metrics.AddLeaguesInFlight(1)
	defer func() {
		metrics.AddLeaguesInFlight(-1)
		s.guard.Release(ctx, leagueID)
	}()

	start := s.clock.Now()
	report := CycleReport{LeagueID: leagueID, StartedAt: start}
	log := s.logger.Named(leagueID)

	result := "ok"
	defer func() {
		report.Duration = s.clock.Since(start)
		metrics.RecordCycle(result, float64(report.Duration.Milliseconds()))
		s.storeReport(report)
	}()

	league, err := s.ledger.League(ctx, leagueID)
	if err != nil {
		result = "error"
		return report, fmt.Errorf("load league %s: %w", leagueID, err)
	}

	league, report.Refreshed, err = s.refreshIfStale(ctx, league)
	if err != nil {
		result = "error"
		return report, err
	}

	cutoff, ok, err := s.cutoff(ctx)
	if err != nil {
		result = "error"
		return report, err
	}
	if !ok {
		log.Info(ctx, "no gameweek finished yet")
		return report, nil
	}
	report.Cutoff = cutoff

	pending, err := s.ledger.UnfinalizedPayouts(ctx, leagueID, cutoff)
	if err != nil {
		result = "error"
		return report, fmt.Errorf("list payouts of %s: %w", leagueID, err)
	}
	log.Debug(ctx, "processing payouts",
		logger.Date("cutoff", cutoff),
		logger.Int("pending", len(pending)),
	)

	for _, p := range pending {
		res, err := s.resolve(ctx, league, p.ID)
		if reason, ok := skipReason(err); ok {
			metrics.RecordPayoutSkipped(reason)
			report.Skipped = append(report.Skipped, Skip{PayoutID: p.ID, Reason: reason, Err: err})
			if reason != ReasonFinalized {
				log.Warn(ctx, "payout skipped",
					logger.String("payout", p.ID),
					logger.String("reason", reason),
					logger.Error(err),
				)
			}
			continue
		}
		if err != nil {
			result = "aborted"
			var tie *payout.TieError
			switch {
			case errors.As(err, &tie):
				metrics.RecordUnresolvableTie()
				log.Error(ctx, "unresolvable tie, manual resolution required",
					logger.String("payout", p.ID),
					logger.String("period", tie.Period.String()),
					logger.Int("position", tie.Position),
					logger.Strings("tied", tie.Tied),
				)
			case errors.Is(err, repository.ErrDuplicatePayout):
				metrics.RecordDuplicateConflict()
				log.Error(ctx, "payout conflicts with an existing winner", logger.String("payout", p.ID), logger.Error(err))
			default:
				result = "error"
				log.Error(ctx, "payout resolution failed", logger.String("payout", p.ID), logger.Error(err))
			}
			return report, fmt.Errorf("league %s payout %s: %w", leagueID, p.ID, err)
		}

		metrics.RecordPayoutResolved(string(res.Outcome), awarded(res))
		report.Resolved = append(report.Resolved, res)
		log.Info(ctx, "payout resolved",
			logger.String("payout", res.PayoutID),
			logger.String("outcome", string(res.Outcome)),
			logger.Int("position", res.Position),
			logger.String("period", res.Period.String()),
			logger.Money("amount", res.Amount),
			logger.Strings("winners", res.Winners),
		)
	}

	log.Info(ctx, "cycle finished",
		logger.Int("resolved", len(report.Resolved)),
		logger.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// errFinalized marks a payout that was removed or resolved since it was listed.
var errFinalized = errors.New("payout no longer pending")

// resolve decides one payout inside a ledger transaction.
func (s *Service) resolve(ctx context.Context, league model.League, id string) (Resolution, error) {
	var res Resolution
	err := s.ledger.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Payout(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return errFinalized
		}
		if err != nil {
			return err
		}
		if p.Finalized() {
			return errFinalized
		}

		ranked, err := s.source.RankedParticipants(ctx, league, p.Period())
		if err != nil {
			return fmt.Errorf("rank %s: %w", p.Period(), err)
		}
		related, err := tx.RelatedPayouts(ctx, p)
		if err != nil {
			return err
		}
		future, err := tx.FuturePayouts(ctx, p)
		if err != nil {
			return err
		}

		out, err := payout.Resolve(p, related, future, ranked)
		if err != nil {
			return err
		}
		if err := out.Apply(ctx, tx); err != nil {
			return err
		}

		res = Resolution{
			PayoutID: p.ID,
			Position: p.Position,
			Period:   p.Period(),
			Outcome:  out.Kind,
			Winners:  out.Winners,
			Amount:   p.Amount,
		}
		return nil
	})
	return res, err
}

// skipReason classifies errors that leave a payout for a later cycle.
func skipReason(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, errFinalized):
		return ReasonFinalized, true
	case errors.Is(err, ranking.ErrEmptyInput):
		return ReasonEmptyInput, true
	case errors.Is(err, payout.ErrNoParticipants):
		return ReasonNoParticipants, true
	case errors.Is(err, payout.ErrNoWinner):
		return ReasonNoWinner, true
	}
	return "", false
}

func awarded(r Resolution) decimal.Decimal {
	if r.Outcome == payout.Deferred {
		return decimal.Zero
	}
	return r.Amount
}

// refreshIfStale refreshes league data older than staleAfter and returns the
// reloaded league.
func (s *Service) refreshIfStale(ctx context.Context, league model.League) (model.League, bool, error) {
	now := s.clock.Now()
	if s.refresher == nil || !league.NeedsRefresh(now, s.staleAfter) {
		metrics.RecordRefresh("fresh")
		return league, false, nil
	}

	if err := s.refresher.Refresh(ctx, league); err != nil {
		metrics.RecordRefresh("error")
		return league, false, fmt.Errorf("%w %s: %w", ErrRefresh, league.ID, err)
	}
	if err := s.ledger.MarkRefreshed(ctx, league.ID, now); err != nil {
		metrics.RecordRefresh("error")
		return league, false, fmt.Errorf("%w %s: %w", ErrRefresh, league.ID, err)
	}
	if inv, ok := s.source.(invalidator); ok {
		inv.Invalidate(league.ID)
	}
	metrics.RecordRefresh("ok")

	reloaded, err := s.ledger.League(ctx, league.ID)
	if err != nil {
		return league, true, fmt.Errorf("reload league %s: %w", league.ID, err)
	}
	return reloaded, true, nil
}

// cutoff returns the end date of the latest finished gameweek. Without a
// calendar the cutoff is today. ok is false while no gameweek has finished.
func (s *Service) cutoff(ctx context.Context) (time.Time, bool, error) {
	today := model.Date(s.clock.Now())
	if s.calendar == nil {
		return today, true, nil
	}
	gws, err := s.calendar.Gameweeks(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load gameweeks: %w", err)
	}
	if len(gws) == 0 {
		return today, true, nil
	}

	var latest *model.Gameweek
	for i := range gws {
		gw := &gws[i]
		if gw.EndDate.After(today) {
			continue
		}
		if latest == nil || gw.Number > latest.Number {
			latest = gw
		}
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return latest.EndDate, true, nil
}
