package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/payday/internal/adapters/repository"
	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/types"
)

// run executes the CLI against the test fixture with the memory store.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PAYDAY_STORE", "memory")
	t.Setenv("PAYDAY_SEED_FILE", "testdata/league.yaml")
	t.Setenv("PAYDAY_WORKER_COUNT", "2")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProcessCommand(t *testing.T) {
	Convey("Given the office league fixture", t, func() {
		Convey("When every league is processed", func() {
			out, err := run(t, "process")

			Convey("Then the August prize goes to C and July is skipped", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "LEAGUE")
				So(out, ShouldContainSubstring, "single_winner")
				So(out, ShouldContainSubstring, "10.00")
				So(out, ShouldContainSubstring, "skipped:empty_input")
			})
		})

		Convey("When an unknown league is processed", func() {
			_, err := run(t, "process", "--league", "nope")

			Convey("Then it fails with not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestStandingsCommand(t *testing.T) {
	Convey("Given the office league fixture", t, func() {
		Convey("When standings are printed as JSON", func() {
			out, err := run(t, "standings", "office", "--json")
			So(err, ShouldBeNil)

			var rows []types.Standing
			So(json.Unmarshal([]byte(out), &rows), ShouldBeNil)

			Convey("Then every entrant is ranked over the season", func() {
				So(len(rows), ShouldEqual, 3)
				So(rows[0].ParticipantID, ShouldEqual, "C")
				So(rows[0].TeamName, ShouldEqual, "Charlie")
				So(rows[0].Score, ShouldEqual, 35)
			})
		})

		Convey("When unpaid entrants are hidden", func() {
			out, err := run(t, "standings", "office", "--paid-only")

			Convey("Then Bravo is not listed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Office League")
				So(out, ShouldContainSubstring, "Charlie")
				So(out, ShouldNotContainSubstring, "Bravo")
			})
		})

		Convey("When the period is given explicitly", func() {
			out, err := run(t, "standings", "office", "--start", "2017-08-19", "--end", "2017-08-21", "--json")
			So(err, ShouldBeNil)

			var rows []types.Standing
			So(json.Unmarshal([]byte(out), &rows), ShouldBeNil)

			Convey("Then only that gameweek counts", func() {
				So(len(rows), ShouldEqual, 2)
				So(rows[0].Score, ShouldEqual, 20)
				So(rows[1].ParticipantID, ShouldEqual, "B")
			})
		})

		Convey("When no league is given", func() {
			_, err := run(t, "standings")

			Convey("Then the arguments are rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestSeedCommand(t *testing.T) {
	Convey("Given the memory store", t, func() {
		_, err := run(t, "seed")

		Convey("Then seeding is refused", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "memory store")
		})
	})
}

func TestStandingsPeriod(t *testing.T) {
	Convey("Given a season calendar", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		for _, gw := range []model.Gameweek{
			{Number: 2, StartDate: mustDate("2017-08-19"), EndDate: mustDate("2017-08-21")},
			{Number: 1, StartDate: mustDate("2017-08-11"), EndDate: mustDate("2017-08-13")},
		} {
			So(store.UpsertGameweek(ctx, gw), ShouldBeNil)
		}

		Convey("Blank flags cover the whole calendar", func() {
			p, err := standingsPeriod(ctx, store, "", "")
			So(err, ShouldBeNil)
			So(p.Start.Equal(mustDate("2017-08-11")), ShouldBeTrue)
			So(p.End.Equal(mustDate("2017-08-21")), ShouldBeTrue)
		})

		Convey("One flag overrides one end", func() {
			p, err := standingsPeriod(ctx, store, "2017-08-15", "")
			So(err, ShouldBeNil)
			So(p.Start.Equal(mustDate("2017-08-15")), ShouldBeTrue)
			So(p.End.Equal(mustDate("2017-08-21")), ShouldBeTrue)
		})

		Convey("Bad dates are rejected", func() {
			_, err := standingsPeriod(ctx, store, "2017-08-40", "2017-08-21")
			So(err, ShouldNotBeNil)
			_, err = standingsPeriod(ctx, store, "2017-08-21", "2017-08-01")
			So(err, ShouldNotBeNil)
		})

		Convey("An empty calendar needs explicit dates", func() {
			_, err := standingsPeriod(ctx, repository.NewMemoryStore(), "", "")
			So(errors.Is(err, errNoGameweeks), ShouldBeTrue)
		})
	})
}

func mustDate(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
