package payout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/payout"
	"github.com/okian/payday/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func date(s string) time.Time {
	t, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func newPayout(id string, position int, start, end, amount string) model.Payout {
	return model.Payout{
		ID:        id,
		LeagueID:  "league-1",
		Name:      "Monthly",
		Position:  position,
		StartDate: date(start),
		EndDate:   date(end),
		Amount:    decimal.RequireFromString(amount),
	}
}

func rankedFrom(t *testing.T, scores map[string]int, order ...string) []model.RankedParticipant {
	t.Helper()
	ps := make([]model.Participant, len(order))
	for i, id := range order {
		ps[i] = model.Participant{ID: id, Score: scores[id], PaidEntry: true}
	}
	ranked, err := ranking.AssignRanks(ps)
	if err != nil {
		t.Fatalf("assign ranks: %v", err)
	}
	return ranked
}

type recordingWriter struct {
	saved    []model.Payout
	inserted []model.Payout
	deleted  []string
	failOn   string
}

func (w *recordingWriter) SavePayout(_ context.Context, p model.Payout) error {
	if w.failOn == "save" {
		return errors.New("save failed")
	}
	w.saved = append(w.saved, p)
	return nil
}

func (w *recordingWriter) InsertPayout(_ context.Context, p model.Payout) (model.Payout, error) {
	p.ID = "new-" + p.WinnerID()
	w.inserted = append(w.inserted, p)
	return p, nil
}

func (w *recordingWriter) DeletePayout(_ context.Context, id string) error {
	w.deleted = append(w.deleted, id)
	return nil
}

func TestResolve_SingleWinner(t *testing.T) {
	Convey("Given cumulative scores A=10, B=20, C=35 over August", t, func() {
		ranked := rankedFrom(t, map[string]int{"A": 10, "B": 20, "C": 35}, "C", "B", "A")
		p := newPayout("p1", 1, "2017-08-01", "2017-08-31", "10")

		Convey("When the position-1 payout is resolved", func() {
			out, err := payout.Resolve(p, nil, nil, ranked)

			Convey("Then C wins the unchanged amount", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, payout.Single)
				So(len(out.Updates), ShouldEqual, 1)
				So(out.Updates[0].ID, ShouldEqual, "p1")
				So(out.Updates[0].WinnerID(), ShouldEqual, "C")
				So(out.Updates[0].Amount.Equal(decimal.NewFromInt(10)), ShouldBeTrue)
				So(out.Inserts, ShouldBeEmpty)
				So(out.Deletes, ShouldBeEmpty)
				So(out.Winners, ShouldResemble, []string{"C"})
			})

			Convey("And the input payout is not modified", func() {
				So(p.Winner, ShouldBeNil)
			})
		})

		Convey("When the position-3 payout is resolved", func() {
			out, err := payout.Resolve(newPayout("p3", 3, "2017-08-01", "2017-08-31", "2"), nil, nil, ranked)

			Convey("Then the last-placed manager wins it", func() {
				So(err, ShouldBeNil)
				So(out.Updates[0].WinnerID(), ShouldEqual, "A")
			})
		})

		Convey("When a future payout exists but the winner is clear", func() {
			future := []model.Payout{newPayout("p2", 1, "2017-09-01", "2017-09-30", "10")}
			out, err := payout.Resolve(p, nil, future, ranked)

			Convey("Then the future payout is left alone", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, payout.Single)
				So(len(out.Updates), ShouldEqual, 1)
				So(out.Updates[0].ID, ShouldEqual, "p1")
			})
		})

		Convey("When related positions each have a unique holder", func() {
			related := []model.Payout{newPayout("p2", 2, "2017-08-01", "2017-08-31", "5")}
			out, err := payout.Resolve(p, related, nil, ranked)

			Convey("Then resolution proceeds", func() {
				So(err, ShouldBeNil)
				So(out.Updates[0].WinnerID(), ShouldEqual, "C")
			})
		})
	})
}

func TestResolve_Preconditions(t *testing.T) {
	Convey("Given a payout", t, func() {
		p := newPayout("p1", 1, "2017-08-01", "2017-08-31", "10")

		Convey("When nobody is ranked", func() {
			_, err := payout.Resolve(p, nil, nil, nil)

			Convey("Then it fails with ErrNoParticipants", func() {
				So(errors.Is(err, payout.ErrNoParticipants), ShouldBeTrue)
			})
		})

		Convey("When the position is deeper than the ranking", func() {
			ranked := rankedFrom(t, map[string]int{"A": 5, "B": 5}, "A", "B")
			_, err := payout.Resolve(newPayout("p2", 2, "2017-08-01", "2017-08-31", "10"), nil, nil, ranked)

			Convey("Then it fails with ErrNoWinner", func() {
				So(errors.Is(err, payout.ErrNoWinner), ShouldBeTrue)
			})
		})
	})
}

func TestResolve_MultiPositionTie(t *testing.T) {
	Convey("Given positions 1 and 2 in the same period", t, func() {
		p1 := newPayout("p1", 1, "2017-08-01", "2017-08-31", "10")
		p2 := newPayout("p2", 2, "2017-08-01", "2017-08-31", "5")

		Convey("When three participants score equally", func() {
			ranked := rankedFrom(t, map[string]int{"A": 10, "B": 10, "C": 10}, "A", "B", "C")

			Convey("Then resolving position 1 is rejected", func() {
				_, err := payout.Resolve(p1, []model.Payout{p2}, nil, ranked)
				So(errors.Is(err, payout.ErrUnresolvableTie), ShouldBeTrue)

				var tie *payout.TieError
				So(errors.As(err, &tie), ShouldBeTrue)
				So(tie.Tied, ShouldResemble, []string{"A", "B", "C"})
				So(tie.Positions, ShouldResemble, []int{2, 1})
			})

			Convey("Then resolving position 2 is rejected", func() {
				_, err := payout.Resolve(p2, []model.Payout{p1}, nil, ranked)
				So(errors.Is(err, payout.ErrUnresolvableTie), ShouldBeTrue)
			})
		})

		Convey("When only the second place is tied", func() {
			ranked := rankedFrom(t, map[string]int{"A": 30, "B": 10, "C": 10}, "A", "B", "C")

			Convey("Then even the clear first place is rejected", func() {
				_, err := payout.Resolve(p1, []model.Payout{p2}, nil, ranked)
				So(errors.Is(err, payout.ErrUnresolvableTie), ShouldBeTrue)

				var tie *payout.TieError
				So(errors.As(err, &tie), ShouldBeTrue)
				So(tie.Position, ShouldEqual, 2)
			})
		})

		Convey("When a future payout exists", func() {
			ranked := rankedFrom(t, map[string]int{"A": 10, "B": 10}, "A", "B")
			future := []model.Payout{newPayout("p3", 1, "2017-09-01", "2017-09-30", "10")}

			Convey("Then the tie is still rejected rather than deferred", func() {
				_, err := payout.Resolve(p1, []model.Payout{p2}, future, ranked)
				So(errors.Is(err, payout.ErrUnresolvableTie), ShouldBeTrue)
			})
		})
	})
}

func TestResolve_Deferral(t *testing.T) {
	Convey("Given a tied position-1 payout with a later payout for the same position", t, func() {
		ranked := rankedFrom(t, map[string]int{"A": 20, "B": 20, "C": 5}, "A", "B", "C")
		p := newPayout("aug", 1, "2017-08-01", "2017-08-31", "10")
		future := []model.Payout{
			newPayout("sep", 1, "2017-09-01", "2017-09-30", "10"),
			newPayout("oct", 1, "2017-10-01", "2017-10-31", "10"),
		}

		out, err := payout.Resolve(p, nil, future, ranked)

		Convey("Then the payout is folded into the earliest future payout", func() {
			So(err, ShouldBeNil)
			So(out.Kind, ShouldEqual, payout.Deferred)
			So(out.Deletes, ShouldResemble, []string{"aug"})
			So(len(out.Updates), ShouldEqual, 1)

			merged := out.Updates[0]
			So(merged.ID, ShouldEqual, "sep")
			So(merged.StartDate, ShouldEqual, date("2017-08-01"))
			So(merged.EndDate, ShouldEqual, date("2017-09-30"))
			So(merged.Amount.Equal(decimal.NewFromInt(20)), ShouldBeTrue)
			So(merged.Winner, ShouldBeNil)
			So(out.Inserts, ShouldBeEmpty)
			So(out.Winners, ShouldBeEmpty)
		})

		Convey("Then the caller's future slice is untouched", func() {
			So(future[0].StartDate, ShouldEqual, date("2017-09-01"))
			So(future[0].Amount.Equal(decimal.NewFromInt(10)), ShouldBeTrue)
		})

		Convey("Then applying it updates then deletes", func() {
			w := &recordingWriter{}
			So(out.Apply(context.Background(), w), ShouldBeNil)
			So(len(w.saved), ShouldEqual, 1)
			So(w.saved[0].ID, ShouldEqual, "sep")
			So(w.deleted, ShouldResemble, []string{"aug"})
			So(out.Total().IsZero(), ShouldBeTrue)
		})
	})
}

func TestResolve_DeferralSkipsFinalized(t *testing.T) {
	Convey("Given a tied payout whose next future payout is already resolved", t, func() {
		ranked := rankedFrom(t, map[string]int{"A": 20, "B": 20}, "A", "B")
		p := newPayout("aug", 1, "2017-08-01", "2017-08-31", "10")
		won := newPayout("sep", 1, "2017-09-01", "2017-09-30", "10")
		winner := "A"
		won.Winner = &winner
		paid := newPayout("oct", 1, "2017-10-01", "2017-10-31", "10")
		paid.PaidOut = true

		Convey("When an open payout follows it", func() {
			open := newPayout("nov", 1, "2017-11-01", "2017-11-30", "10")
			out, err := payout.Resolve(p, nil, []model.Payout{won, paid, open}, ranked)

			Convey("Then the tie is folded into the open payout", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, payout.Deferred)
				So(len(out.Updates), ShouldEqual, 1)
				So(out.Updates[0].ID, ShouldEqual, "nov")
				So(out.Updates[0].StartDate, ShouldEqual, date("2017-08-01"))
			})
		})

		Convey("When every future payout is finalized", func() {
			out, err := payout.Resolve(p, nil, []model.Payout{won, paid}, ranked)

			Convey("Then the amount is split instead", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, payout.Split)
				So(out.Winners, ShouldResemble, []string{"A", "B"})
				So(out.Total().Equal(decimal.NewFromInt(10)), ShouldBeTrue)
			})
		})
	})
}

func TestResolve_Split(t *testing.T) {
	Convey("Given a three-way tie and no future payout", t, func() {
		ranked := rankedFrom(t, map[string]int{"A": 20, "B": 20, "C": 20, "D": 1}, "A", "B", "C", "D")
		p := newPayout("final", 1, "2017-08-01", "2018-05-31", "10")

		out, err := payout.Resolve(p, nil, nil, ranked)

		Convey("Then the first winner keeps the record plus the remainder", func() {
			So(err, ShouldBeNil)
			So(out.Kind, ShouldEqual, payout.Split)
			So(len(out.Updates), ShouldEqual, 1)
			So(out.Updates[0].ID, ShouldEqual, "final")
			So(out.Updates[0].WinnerID(), ShouldEqual, "A")
			So(out.Updates[0].Amount.StringFixed(2), ShouldEqual, "3.34")
		})

		Convey("Then every other winner gets a cloned record", func() {
			So(len(out.Inserts), ShouldEqual, 2)
			for i, want := range []string{"B", "C"} {
				sib := out.Inserts[i]
				So(sib.ID, ShouldEqual, "")
				So(sib.WinnerID(), ShouldEqual, want)
				So(sib.Amount.StringFixed(2), ShouldEqual, "3.33")
				So(sib.Name, ShouldEqual, p.Name)
				So(sib.Position, ShouldEqual, p.Position)
				So(sib.StartDate, ShouldEqual, p.StartDate)
				So(sib.EndDate, ShouldEqual, p.EndDate)
				So(sib.LeagueID, ShouldEqual, p.LeagueID)
			}
		})

		Convey("Then the total is conserved", func() {
			So(out.Total().Equal(p.Amount), ShouldBeTrue)
		})

		Convey("Then applying it writes every record", func() {
			w := &recordingWriter{}
			So(out.Apply(context.Background(), w), ShouldBeNil)
			So(len(w.saved), ShouldEqual, 1)
			So(len(w.inserted), ShouldEqual, 2)
			So(w.deleted, ShouldBeEmpty)
		})

		Convey("Then a failing writer surfaces the error", func() {
			err := out.Apply(context.Background(), &recordingWriter{failOn: "save"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "save payout final")
		})
	})
}

func TestResolve_ConservationOfMoney(t *testing.T) {
	amounts := []string{"0.01", "0.05", "1", "7.77", "10", "33.33", "100.01", "250.00", "999999.99"}
	for _, amount := range amounts {
		for n := 2; n <= 9; n++ {
			scores := map[string]int{}
			order := make([]string, n)
			for i := 0; i < n; i++ {
				id := string(rune('A' + i))
				scores[id] = 50
				order[i] = id
			}
			ranked := rankedFrom(t, scores, order...)
			p := newPayout("p", 1, "2017-08-01", "2017-08-31", amount)

			out, err := payout.Resolve(p, nil, nil, ranked)
			if err != nil {
				t.Fatalf("amount %s n %d: %v", amount, n, err)
			}
			if got := len(out.Updates) + len(out.Inserts); got != n {
				t.Errorf("amount %s n %d: %d records, want %d", amount, n, got, n)
			}
			if !out.Total().Equal(p.Amount) {
				t.Errorf("amount %s n %d: total %s, want %s", amount, n, out.Total(), p.Amount)
			}
		}
	}
}

func TestShares(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		n      int
		want   []string
	}{
		{"even", "10", 2, []string{"5.00", "5.00"}},
		{"thirds", "10", 3, []string{"3.34", "3.33", "3.33"}},
		{"half cent rounds to even", "0.05", 2, []string{"0.03", "0.02"}},
		{"sevenths", "1", 7, []string{"0.16", "0.14", "0.14", "0.14", "0.14", "0.14", "0.14"}},
		{"single", "4.20", 1, []string{"4.20"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := payout.Shares(decimal.RequireFromString(tt.amount), tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d shares, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].StringFixed(2) != tt.want[i] {
					t.Errorf("share %d = %s, want %s", i, got[i].StringFixed(2), tt.want[i])
				}
			}
		})
	}

	if got := payout.Shares(decimal.NewFromInt(1), 0); got != nil {
		t.Errorf("Shares(1, 0) = %v, want nil", got)
	}
}
