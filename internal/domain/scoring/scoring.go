// Package scoring turns raw gameweek results into the integer scores that
// ranking sources aggregate.
package scoring

import "github.com/okian/payday/internal/domain/model"

// Default head-to-head match points.
const (
	defaultWinPoints  = 3
	defaultDrawPoints = 1
	defaultLossPoints = 0
)

// Option applies a configuration option to Rules.
type Option func(*Rules)

// WithMatchPoints overrides the points awarded for a head-to-head win, draw
// and loss. Negative values are ignored.
func WithMatchPoints(win, draw, loss int) Option {
	return func(r *Rules) {
		if win >= 0 && draw >= 0 && loss >= 0 {
			r.win = win
			r.draw = draw
			r.loss = loss
		}
	}
}

// Rules holds the scoring parameters of a season.
type Rules struct {
	win  int
	draw int
	loss int
}

// NewRules creates scoring rules with the standard 3/1/0 match points.
func NewRules(opts ...Option) *Rules {
	r := &Rules{
		win:  defaultWinPoints,
		draw: defaultDrawPoints,
		loss: defaultLossPoints,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GameweekScore is the classic-league score of one performance: points
// earned minus the cost of extra transfers.
func (r *Rules) GameweekScore(p model.Performance) int {
	return p.Points - p.TransferCost
}

// MatchPoints returns the league points earned by the home and away side of
// a head-to-head match given their gameweek scores.
func (r *Rules) MatchPoints(homeScore, awayScore int) (home, away int) {
	switch {
	case homeScore == awayScore:
		return r.draw, r.draw
	case homeScore > awayScore:
		return r.win, r.loss
	default:
		return r.loss, r.win
	}
}
