package ranking

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/scoring"
)

// Source produces the ranking snapshot of a league over a period.
type Source interface {
	// RankedParticipants returns participants ordered by cumulative score
	// descending with dense ranks. Returns ErrEmptyInput when nobody scored
	// in the period.
	RankedParticipants(ctx context.Context, league model.League, period model.Period) ([]model.RankedParticipant, error)
}

// PerformanceReader gives read access to the scoring inputs of a season.
type PerformanceReader interface {
	Gameweeks(ctx context.Context) ([]model.Gameweek, error)
	Performances(ctx context.Context, participantIDs []string, gameweeks []int) ([]model.Performance, error)
	Matches(ctx context.Context, leagueID string, gameweeks []int) ([]model.Match, error)
}

// ClassicSource ranks by cumulative gameweek score.
type ClassicSource struct {
	reader PerformanceReader
	rules  *scoring.Rules
}

// NewClassicSource creates a source for classic leagues.
func NewClassicSource(reader PerformanceReader, rules *scoring.Rules) *ClassicSource {
	if rules == nil {
		rules = scoring.NewRules()
	}
	return &ClassicSource{reader: reader, rules: rules}
}

// RankedParticipants implements Source.
func (s *ClassicSource) RankedParticipants(ctx context.Context, league model.League, period model.Period) ([]model.RankedParticipant, error) {
	gws, err := gameweeksIn(ctx, s.reader, period)
	if err != nil {
		return nil, err
	}
	if len(gws) == 0 {
		return nil, ErrEmptyInput
	}

	ids := make([]string, 0, len(league.Entrants))
	for _, e := range league.Entrants {
		ids = append(ids, e.ParticipantID)
	}
	perfs, err := s.reader.Performances(ctx, ids, gws)
	if err != nil {
		return nil, fmt.Errorf("load performances for league %s: %w", league.ID, err)
	}

	totals := make(map[string]int)
	for _, p := range perfs {
		totals[p.ParticipantID] += s.rules.GameweekScore(p)
	}
	return rank(league, totals)
}

// HeadToHeadSource ranks by match points accumulated in league fixtures.
type HeadToHeadSource struct {
	reader PerformanceReader
	rules  *scoring.Rules
}

// NewHeadToHeadSource creates a source for head-to-head leagues.
func NewHeadToHeadSource(reader PerformanceReader, rules *scoring.Rules) *HeadToHeadSource {
	if rules == nil {
		rules = scoring.NewRules()
	}
	return &HeadToHeadSource{reader: reader, rules: rules}
}

// RankedParticipants implements Source.
func (s *HeadToHeadSource) RankedParticipants(ctx context.Context, league model.League, period model.Period) ([]model.RankedParticipant, error) {
	gws, err := gameweeksIn(ctx, s.reader, period)
	if err != nil {
		return nil, err
	}
	if len(gws) == 0 {
		return nil, ErrEmptyInput
	}

	matches, err := s.reader.Matches(ctx, league.ID, gws)
	if err != nil {
		return nil, fmt.Errorf("load matches for league %s: %w", league.ID, err)
	}

	totals := make(map[string]int)
	for _, m := range matches {
		home, away := s.rules.MatchPoints(m.HomeScore, m.AwayScore)
		totals[m.Home] += home
		totals[m.Away] += away
	}
	return rank(league, totals)
}

// gameweeksIn returns the numbers of gameweeks starting inside period.
func gameweeksIn(ctx context.Context, reader PerformanceReader, period model.Period) ([]int, error) {
	all, err := reader.Gameweeks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gameweeks: %w", err)
	}
	var out []int
	for _, gw := range all {
		if period.Contains(gw.StartDate) {
			out = append(out, gw.Number)
		}
	}
	return out, nil
}

// rank orders league entrants with a total by score desc, id asc.
func rank(league model.League, totals map[string]int) ([]model.RankedParticipant, error) {
	participants := make([]model.Participant, 0, len(totals))
	for _, e := range league.Entrants {
		score, ok := totals[e.ParticipantID]
		if !ok {
			continue
		}
		participants = append(participants, model.Participant{
			ID:        e.ParticipantID,
			Score:     score,
			PaidEntry: e.PaidEntry,
		})
	}
	slices.SortFunc(participants, func(a, b model.Participant) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return AssignRanks(participants)
}

// Sources dispatches to a Source by league kind.
type Sources map[model.LeagueKind]Source

// RankedParticipants implements Source.
func (s Sources) RankedParticipants(ctx context.Context, league model.League, period model.Period) ([]model.RankedParticipant, error) {
	src, ok := s[league.Kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, league.Kind)
	}
	return src.RankedParticipants(ctx, league, period)
}
