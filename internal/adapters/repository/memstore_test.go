package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/payday/internal/domain/model"
)

func day(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%02d", n.Add(1))
	}
}

func seededStore() *MemoryStore {
	ctx := context.Background()
	s := NewMemoryStore(WithIDGenerator(sequentialIDs()))
	_ = s.UpsertLeague(ctx, model.League{ID: "L", Name: "League", Kind: model.KindClassic})
	_ = s.UpsertLeague(ctx, model.League{ID: "M", Name: "Other", Kind: model.KindClassic})
	for _, p := range []model.Payout{
		{ID: "aug-1", LeagueID: "L", Position: 1, StartDate: day("2017-08-01"), EndDate: day("2017-08-31"), Amount: decimal.NewFromInt(10)},
		{ID: "aug-2", LeagueID: "L", Position: 2, StartDate: day("2017-08-01"), EndDate: day("2017-08-31"), Amount: decimal.NewFromInt(5)},
		{ID: "sep-1", LeagueID: "L", Position: 1, StartDate: day("2017-09-01"), EndDate: day("2017-09-30"), Amount: decimal.NewFromInt(10)},
		{ID: "oct-1", LeagueID: "L", Position: 1, StartDate: day("2017-10-01"), EndDate: day("2017-10-31"), Amount: decimal.NewFromInt(10)},
		{ID: "other", LeagueID: "M", Position: 1, StartDate: day("2017-08-01"), EndDate: day("2017-08-31"), Amount: decimal.NewFromInt(1)},
	} {
		if _, err := s.UpsertPayout(ctx, p); err != nil {
			panic(err)
		}
	}
	return s
}

func ids(ps []model.Payout) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestMemoryStoreQueries(t *testing.T) {
	Convey("Given a seeded memory store", t, func() {
		ctx := context.Background()
		s := seededStore()

		Convey("Unfinalized payouts are cut off by end date and ordered by period", func() {
			ps, err := s.UnfinalizedPayouts(ctx, "L", day("2017-09-30"))
			So(err, ShouldBeNil)
			So(ids(ps), ShouldResemble, []string{"aug-1", "aug-2", "sep-1"})
		})

		Convey("Resolved and paid payouts are not unfinalized", func() {
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				p, err := tx.Payout(ctx, "aug-1")
				if err != nil {
					return err
				}
				w := "A"
				p.Winner = &w
				if err := tx.SavePayout(ctx, p); err != nil {
					return err
				}
				p, err = tx.Payout(ctx, "aug-2")
				if err != nil {
					return err
				}
				p.PaidOut = true
				return tx.SavePayout(ctx, p)
			})
			So(err, ShouldBeNil)

			ps, err := s.UnfinalizedPayouts(ctx, "L", day("2017-12-31"))
			So(err, ShouldBeNil)
			So(ids(ps), ShouldResemble, []string{"sep-1", "oct-1"})
		})

		Convey("Related and future payouts are scoped to the league", func() {
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				p, err := tx.Payout(ctx, "aug-1")
				So(err, ShouldBeNil)

				related, err := tx.RelatedPayouts(ctx, p)
				So(err, ShouldBeNil)
				So(ids(related), ShouldResemble, []string{"aug-2"})

				future, err := tx.FuturePayouts(ctx, p)
				So(err, ShouldBeNil)
				So(ids(future), ShouldResemble, []string{"sep-1", "oct-1"})

				q, err := tx.Payout(ctx, "aug-2")
				So(err, ShouldBeNil)
				future, err = tx.FuturePayouts(ctx, q)
				So(err, ShouldBeNil)
				So(future, ShouldBeEmpty)
				return nil
			})
			So(err, ShouldBeNil)
		})

		Convey("Finalized payouts are not future payouts", func() {
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				sep, err := tx.Payout(ctx, "sep-1")
				if err != nil {
					return err
				}
				sep.PaidOut = true
				if err := tx.SavePayout(ctx, sep); err != nil {
					return err
				}

				p, err := tx.Payout(ctx, "aug-1")
				So(err, ShouldBeNil)
				future, err := tx.FuturePayouts(ctx, p)
				So(err, ShouldBeNil)
				So(ids(future), ShouldResemble, []string{"oct-1"})
				return nil
			})
			So(err, ShouldBeNil)
		})

		Convey("Leagues are listed by id", func() {
			ls, err := s.Leagues(ctx)
			So(err, ShouldBeNil)
			So(len(ls), ShouldEqual, 2)
			So(ls[0].ID, ShouldEqual, "L")
			So(ls[1].ID, ShouldEqual, "M")
		})

		Convey("Unknown leagues are not found", func() {
			_, err := s.League(ctx, "nope")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(errors.Is(s.MarkRefreshed(ctx, "nope", time.Now()), ErrNotFound), ShouldBeTrue)
			_, err = s.UpsertPayout(ctx, model.Payout{LeagueID: "nope", Position: 1})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("MarkRefreshed survives a later league upsert", func() {
			at := time.Date(2017, 9, 1, 12, 0, 0, 0, time.UTC)
			So(s.MarkRefreshed(ctx, "L", at), ShouldBeNil)
			So(s.UpsertLeague(ctx, model.League{ID: "L", Name: "Renamed", Kind: model.KindClassic}), ShouldBeNil)

			l, err := s.League(ctx, "L")
			So(err, ShouldBeNil)
			So(l.Name, ShouldEqual, "Renamed")
			So(l.LastRefreshed, ShouldNotBeNil)
			So(l.LastRefreshed.Equal(at), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreTransactions(t *testing.T) {
	Convey("Given a seeded memory store", t, func() {
		ctx := context.Background()
		s := seededStore()

		Convey("A failing transaction leaves the ledger unchanged", func() {
			boom := errors.New("boom")
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				So(tx.DeletePayout(ctx, "aug-1"), ShouldBeNil)
				_, err := tx.InsertPayout(ctx, model.Payout{LeagueID: "L", Position: 3, StartDate: day("2017-08-01"), EndDate: day("2017-08-31")})
				So(err, ShouldBeNil)
				return boom
			})
			So(errors.Is(err, boom), ShouldBeTrue)

			ps, err := s.Payouts(ctx, "L")
			So(err, ShouldBeNil)
			So(ids(ps), ShouldResemble, []string{"aug-1", "aug-2", "sep-1", "oct-1"})
		})

		Convey("A successful transaction commits all writes together", func() {
			var inserted model.Payout
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				var err error
				inserted, err = tx.InsertPayout(ctx, model.Payout{LeagueID: "L", Position: 3, StartDate: day("2017-08-01"), EndDate: day("2017-08-31")})
				if err != nil {
					return err
				}
				return tx.DeletePayout(ctx, "oct-1")
			})
			So(err, ShouldBeNil)
			So(inserted.ID, ShouldNotBeEmpty)

			ps, err := s.Payouts(ctx, "L")
			So(err, ShouldBeNil)
			So(ids(ps), ShouldResemble, []string{"aug-1", "aug-2", inserted.ID, "sep-1"})
		})

		Convey("Writes inside a transaction are visible to later reads in it", func() {
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				So(tx.DeletePayout(ctx, "sep-1"), ShouldBeNil)
				_, err := tx.Payout(ctx, "sep-1")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				return nil
			})
			So(err, ShouldBeNil)
		})

		Convey("A transaction cannot be used after it ends", func() {
			var leaked Tx
			So(s.InTx(ctx, func(_ context.Context, tx Tx) error {
				leaked = tx
				return nil
			}), ShouldBeNil)

			_, err := leaked.Payout(ctx, "aug-1")
			So(errors.Is(err, ErrTxDone), ShouldBeTrue)
			So(errors.Is(leaked.DeletePayout(ctx, "aug-1"), ErrTxDone), ShouldBeTrue)
		})

		Convey("A cancelled context aborts the transaction", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			called := false
			err := s.InTx(cctx, func(context.Context, Tx) error {
				called = true
				return nil
			})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(called, ShouldBeFalse)
		})

		Convey("The same winner cannot hold a position twice in one period", func() {
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				w := "A"
				p, err := tx.Payout(ctx, "aug-1")
				So(err, ShouldBeNil)
				p.Winner = &w
				So(tx.SavePayout(ctx, p), ShouldBeNil)

				clone := p.Clone()
				clone.ID = ""
				_, err = tx.InsertPayout(ctx, clone)
				return err
			})
			So(errors.Is(err, ErrDuplicatePayout), ShouldBeTrue)

			p, _ := s.Payouts(ctx, "L")
			So(p[0].Winner, ShouldBeNil)
		})

		Convey("Saving a missing payout fails", func() {
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				return tx.SavePayout(ctx, model.Payout{ID: "ghost", LeagueID: "L", Position: 1})
			})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemoryStorePerformanceReader(t *testing.T) {
	Convey("Given scoring data", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		So(s.UpsertGameweek(ctx, model.Gameweek{Number: 2, StartDate: day("2017-08-19"), EndDate: day("2017-08-21")}), ShouldBeNil)
		So(s.UpsertGameweek(ctx, model.Gameweek{Number: 1, StartDate: day("2017-08-11"), EndDate: day("2017-08-13")}), ShouldBeNil)
		So(s.UpsertPerformance(ctx, model.Performance{ParticipantID: "A", Gameweek: 1, Points: 50}), ShouldBeNil)
		So(s.UpsertPerformance(ctx, model.Performance{ParticipantID: "A", Gameweek: 1, Points: 60, TransferCost: 4}), ShouldBeNil)
		So(s.UpsertPerformance(ctx, model.Performance{ParticipantID: "B", Gameweek: 2, Points: 40}), ShouldBeNil)
		So(s.UpsertMatch(ctx, model.Match{LeagueID: "H", Gameweek: 2, Home: "A", Away: "B", HomeScore: 1, AwayScore: 0}), ShouldBeNil)
		So(s.UpsertMatch(ctx, model.Match{LeagueID: "X", Gameweek: 2, Home: "C", Away: "D"}), ShouldBeNil)

		Convey("Gameweeks come back in number order", func() {
			gws, err := s.Gameweeks(ctx)
			So(err, ShouldBeNil)
			So(len(gws), ShouldEqual, 2)
			So(gws[0].Number, ShouldEqual, 1)
		})

		Convey("Performances are replaced per participant and gameweek", func() {
			ps, err := s.Performances(ctx, []string{"A", "B"}, []int{1})
			So(err, ShouldBeNil)
			So(len(ps), ShouldEqual, 1)
			So(ps[0].Points, ShouldEqual, 60)
			So(ps[0].TransferCost, ShouldEqual, 4)
		})

		Convey("Matches are filtered by league and gameweek", func() {
			ms, err := s.Matches(ctx, "H", []int{1, 2})
			So(err, ShouldBeNil)
			So(len(ms), ShouldEqual, 1)
			So(ms[0].ID, ShouldNotBeEmpty)

			ms, err = s.Matches(ctx, "H", []int{1})
			So(err, ShouldBeNil)
			So(ms, ShouldBeEmpty)
		})
	})
}
