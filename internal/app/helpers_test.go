package service_test

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/payday/internal/adapters/repository"
	service "github.com/okian/payday/internal/app"
	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/ranking"
	"github.com/okian/payday/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func date(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

var (
	july   = model.Period{Start: date("2017-07-01"), End: date("2017-07-31")}
	august = model.Period{Start: date("2017-08-01"), End: date("2017-08-31")}
	sept   = model.Period{Start: date("2017-09-01"), End: date("2017-09-30")}
)

// env is a season of four gameweeks; the fourth finished on 2017-09-11.
type env struct {
	ctx   context.Context
	store *repository.MemoryStore
	clock *clockwork.FakeClock
}

func newEnv() *env {
	e := &env{
		ctx:   context.Background(),
		store: repository.NewMemoryStore(),
		clock: clockwork.NewFakeClockAt(date("2017-09-12").Add(10 * time.Hour)),
	}
	for _, gw := range []model.Gameweek{
		{Number: 1, StartDate: date("2017-08-11"), EndDate: date("2017-08-13")},
		{Number: 2, StartDate: date("2017-08-19"), EndDate: date("2017-08-21")},
		{Number: 3, StartDate: date("2017-08-26"), EndDate: date("2017-08-28")},
		{Number: 4, StartDate: date("2017-09-09"), EndDate: date("2017-09-11")},
	} {
		So(e.store.UpsertGameweek(e.ctx, gw), ShouldBeNil)
	}
	return e
}

// league stores a classic league whose entrants scored the given points in
// gameweeks 1, 2, 3 and so on.
func (e *env) league(id string, points map[string][]int) model.League {
	l := model.League{ID: id, Name: id, Kind: model.KindClassic, EntryFee: decimal.Zero}
	ids := make([]string, 0, len(points))
	for pid := range points {
		ids = append(ids, pid)
	}
	slices.Sort(ids)
	for _, pid := range ids {
		l.Entrants = append(l.Entrants, model.Entrant{ParticipantID: pid, TeamName: pid, PaidEntry: true})
		for i, pts := range points[pid] {
			So(e.store.UpsertPerformance(e.ctx, model.Performance{
				ParticipantID: pid, Gameweek: i + 1, Points: pts,
			}), ShouldBeNil)
		}
	}
	So(e.store.UpsertLeague(e.ctx, l), ShouldBeNil)
	return l
}

func (e *env) payout(id, leagueID string, position int, period model.Period, amount string) model.Payout {
	p, err := e.store.UpsertPayout(e.ctx, model.Payout{
		ID:        id,
		LeagueID:  leagueID,
		Name:      id,
		Position:  position,
		StartDate: period.Start,
		EndDate:   period.End,
		Amount:    decimal.RequireFromString(amount),
	})
	So(err, ShouldBeNil)
	return p
}

func (e *env) payouts(leagueID string) []model.Payout {
	ps, err := e.store.Payouts(e.ctx, leagueID)
	So(err, ShouldBeNil)
	return ps
}

func (e *env) service(opts ...service.Option) *service.Service {
	return e.serviceWith(ranking.NewClassicSource(e.store, nil), opts...)
}

func (e *env) serviceWith(src ranking.Source, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithClock(e.clock),
		service.WithLogger(logger.Discard()),
		service.WithCalendar(e.store),
	}
	return service.New(e.store, src, append(base, opts...)...)
}

// threeGameweekSeason stores league L where C finishes August on 35 points,
// B on 20 and A on 10.
func (e *env) threeGameweekSeason() model.League {
	return e.league("L", map[string][]int{
		"A": {0, 0, 10},
		"B": {0, 10, 10},
		"C": {0, 20, 15},
	})
}

func winners(ps []model.Payout) []string {
	var out []string
	for _, p := range ps {
		if p.Winner != nil {
			out = append(out, *p.Winner)
		}
	}
	slices.Sort(out)
	return out
}

type fakeRefresher struct {
	calls int
	err   error
	apply func()
}

func (f *fakeRefresher) Refresh(_ context.Context, _ model.League) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.apply != nil {
		f.apply()
	}
	return nil
}

func newEnvClockAt(day string) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(date(day).Add(10 * time.Hour))
}
