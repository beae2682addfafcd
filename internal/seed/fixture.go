// Package seed loads league fixtures from YAML files into a store. A fixture
// file also stands in for the upstream fantasy API as a refresh source.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/okian/payday/internal/adapters/repository"
	"github.com/okian/payday/internal/domain/model"
)

// Fixture is the content of a fixture file. Dates are quoted YYYY-MM-DD
// strings and amounts are quoted decimals.
type Fixture struct {
	Gameweeks    []GameweekFixture    `koanf:"gameweeks"`
	Performances []PerformanceFixture `koanf:"performances"`
	Leagues      []LeagueFixture      `koanf:"leagues"`
}

// GameweekFixture is one gameweek of the calendar.
type GameweekFixture struct {
	Number int    `koanf:"number"`
	Start  string `koanf:"start"`
	End    string `koanf:"end"`
}

// PerformanceFixture is a participant's gameweek result.
type PerformanceFixture struct {
	Participant  string `koanf:"participant"`
	Gameweek     int    `koanf:"gameweek"`
	Points       int    `koanf:"points"`
	TransferCost int    `koanf:"transfer_cost"`
}

// LeagueFixture is a league with its entrants, fixtures and payouts.
type LeagueFixture struct {
	ID       string           `koanf:"id"`
	Name     string           `koanf:"name"`
	Kind     string           `koanf:"kind"`
	EntryFee string           `koanf:"entry_fee"`
	Entrants []EntrantFixture `koanf:"entrants"`
	Matches  []MatchFixture   `koanf:"matches"`
	Payouts  []PayoutFixture  `koanf:"payouts"`
}

// EntrantFixture registers a participant in a league.
type EntrantFixture struct {
	ID   string `koanf:"id"`
	Team string `koanf:"team"`
	Paid bool   `koanf:"paid"`
}

// MatchFixture is a head-to-head match.
type MatchFixture struct {
	ID        string `koanf:"id"`
	Gameweek  int    `koanf:"gameweek"`
	Home      string `koanf:"home"`
	Away      string `koanf:"away"`
	HomeScore int    `koanf:"home_score"`
	AwayScore int    `koanf:"away_score"`
}

// PayoutFixture schedules a payout.
type PayoutFixture struct {
	ID       string `koanf:"id"`
	Name     string `koanf:"name"`
	Position int    `koanf:"position"`
	Start    string `koanf:"start"`
	End      string `koanf:"end"`
	Amount   string `koanf:"amount"`
}

// LoadFile parses and validates a fixture file.
func LoadFile(_ context.Context, path string) (*Fixture, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFixture, path, err)
	}
	var f Fixture
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFixture, path, err)
	}
	if _, err := f.build(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// data is a fixture converted to domain models.
type data struct {
	gameweeks    []model.Gameweek
	performances []model.Performance
	leagues      []model.League
	matches      map[string][]model.Match
	payouts      map[string][]model.Payout
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFixture, fmt.Sprintf(format, args...))
}

// build validates the fixture and converts it.
func (f *Fixture) build() (*data, error) {
	d := &data{
		matches: make(map[string][]model.Match),
		payouts: make(map[string][]model.Payout),
	}

	for _, g := range f.Gameweeks {
		start, err := model.ParseDate(g.Start)
		if err != nil {
			return nil, invalid("gameweek %d: %v", g.Number, err)
		}
		end, err := model.ParseDate(g.End)
		if err != nil {
			return nil, invalid("gameweek %d: %v", g.Number, err)
		}
		if g.Number < 1 || end.Before(start) {
			return nil, invalid("gameweek %d: bad number or dates", g.Number)
		}
		d.gameweeks = append(d.gameweeks, model.Gameweek{Number: g.Number, StartDate: start, EndDate: end})
	}

	for _, p := range f.Performances {
		if p.Participant == "" || p.Gameweek < 1 {
			return nil, invalid("performance %q gameweek %d", p.Participant, p.Gameweek)
		}
		d.performances = append(d.performances, model.Performance{
			ParticipantID: p.Participant,
			Gameweek:      p.Gameweek,
			Points:        p.Points,
			TransferCost:  p.TransferCost,
		})
	}

	seen := make(map[string]bool)
	for _, lf := range f.Leagues {
		l, err := lf.league()
		if err != nil {
			return nil, err
		}
		if seen[l.ID] {
			return nil, invalid("league %s listed twice", l.ID)
		}
		seen[l.ID] = true
		d.leagues = append(d.leagues, l)

		for i, m := range lf.Matches {
			if m.Home == "" || m.Away == "" || m.Home == m.Away {
				return nil, invalid("league %s match %d: bad sides", l.ID, i)
			}
			id := m.ID
			if id == "" {
				id = fmt.Sprintf("%s-gw%d-%s-%s", l.ID, m.Gameweek, m.Home, m.Away)
			}
			d.matches[l.ID] = append(d.matches[l.ID], model.Match{
				ID: id, LeagueID: l.ID, Gameweek: m.Gameweek,
				Home: m.Home, Away: m.Away, HomeScore: m.HomeScore, AwayScore: m.AwayScore,
			})
		}

		for _, pf := range lf.Payouts {
			p, err := pf.payout(l.ID)
			if err != nil {
				return nil, err
			}
			d.payouts[l.ID] = append(d.payouts[l.ID], p)
		}
	}
	return d, nil
}

func (lf LeagueFixture) league() (model.League, error) {
	l := model.League{ID: lf.ID, Name: lf.Name, Kind: model.LeagueKind(lf.Kind), EntryFee: decimal.Zero}
	if l.ID == "" {
		return l, invalid("league without id")
	}
	if l.Kind == "" {
		l.Kind = model.KindClassic
	}
	if !l.Kind.Valid() {
		return l, invalid("league %s: unknown kind %q", l.ID, lf.Kind)
	}
	if strings.TrimSpace(lf.EntryFee) != "" {
		fee, err := decimal.NewFromString(lf.EntryFee)
		if err != nil {
			return l, invalid("league %s entry fee: %v", l.ID, err)
		}
		l.EntryFee = fee
	}
	for _, e := range lf.Entrants {
		if e.ID == "" {
			return l, invalid("league %s: entrant without id", l.ID)
		}
		l.Entrants = append(l.Entrants, model.Entrant{ParticipantID: e.ID, TeamName: e.Team, PaidEntry: e.Paid})
	}
	return l, nil
}

func (pf PayoutFixture) payout(leagueID string) (model.Payout, error) {
	start, err := model.ParseDate(pf.Start)
	if err != nil {
		return model.Payout{}, invalid("league %s payout %q: %v", leagueID, pf.Name, err)
	}
	end, err := model.ParseDate(pf.End)
	if err != nil {
		return model.Payout{}, invalid("league %s payout %q: %v", leagueID, pf.Name, err)
	}
	amount, err := decimal.NewFromString(pf.Amount)
	if err != nil {
		return model.Payout{}, invalid("league %s payout %q amount: %v", leagueID, pf.Name, err)
	}
	if pf.Position < 1 || end.Before(start) || amount.IsNegative() {
		return model.Payout{}, invalid("league %s payout %q: bad position, dates or amount", leagueID, pf.Name)
	}
	id := pf.ID
	if id == "" {
		id = fmt.Sprintf("%s-p%d-%s-%s", leagueID, pf.Position, pf.Start, pf.End)
	}
	return model.Payout{
		ID: id, LeagueID: leagueID, Name: pf.Name, Position: pf.Position,
		StartDate: start, EndDate: end, Amount: amount.Round(2),
	}, nil
}

// Seed writes the whole fixture, payouts included. Run it once per store;
// seeding again overwrites resolved payouts with their scheduled state.
func (f *Fixture) Seed(ctx context.Context, w repository.Writer) error {
	d, err := f.build()
	if err != nil {
		return err
	}
	if err := d.writeScoring(ctx, w, d.leagues); err != nil {
		return err
	}
	for _, l := range d.leagues {
		for _, p := range d.payouts[l.ID] {
			if _, err := w.UpsertPayout(ctx, p); err != nil {
				return fmt.Errorf("seed payout %s: %w", p.ID, err)
			}
		}
	}
	return nil
}

// writeScoring writes the calendar and the given leagues with their
// entrants, matches and entrant performances.
func (d *data) writeScoring(ctx context.Context, w repository.Writer, leagues []model.League) error {
	for _, gw := range d.gameweeks {
		if err := w.UpsertGameweek(ctx, gw); err != nil {
			return fmt.Errorf("seed gameweek %d: %w", gw.Number, err)
		}
	}
	entrants := make(map[string]bool)
	for _, l := range leagues {
		if err := w.UpsertLeague(ctx, l); err != nil {
			return fmt.Errorf("seed league %s: %w", l.ID, err)
		}
		for _, e := range l.Entrants {
			entrants[e.ParticipantID] = true
		}
		for _, m := range d.matches[l.ID] {
			if err := w.UpsertMatch(ctx, m); err != nil {
				return fmt.Errorf("seed match %s: %w", m.ID, err)
			}
		}
	}
	for _, p := range d.performances {
		if !entrants[p.ParticipantID] {
			continue
		}
		if err := w.UpsertPerformance(ctx, p); err != nil {
			return fmt.Errorf("seed performance %s/%d: %w", p.ParticipantID, p.Gameweek, err)
		}
	}
	return nil
}
