// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for periods and fixtures.
const DateLayout = "2006-01-02"

// Payout is one scheduled cash prize of a league: the participant finishing
// at Position over [StartDate, EndDate] receives Amount.
type Payout struct {
	ID        string
	LeagueID  string
	Name      string
	Position  int             // target rank, 1-based
	StartDate time.Time       // inclusive, calendar date
	EndDate   time.Time       // inclusive, calendar date
	Amount    decimal.Decimal // 2 decimal places
	Winner    *string         // participant id, nil until resolved
	PaidOut   bool            // money disbursed; set by the upstream workflow
}

// Period returns the scoring window of the payout.
func (p Payout) Period() Period {
	return Period{Start: p.StartDate, End: p.EndDate}
}

// Finalized reports whether the payout no longer takes part in resolution.
func (p Payout) Finalized() bool {
	return p.Winner != nil || p.PaidOut
}

// WinnerID returns the winner or "" when unresolved.
func (p Payout) WinnerID() string {
	if p.Winner == nil {
		return ""
	}
	return *p.Winner
}

// Clone returns a deep copy; the winner pointer is not shared.
func (p Payout) Clone() Payout {
	c := p
	if p.Winner != nil {
		w := *p.Winner
		c.Winner = &w
	}
	return c
}

func (p Payout) String() string {
	return fmt.Sprintf("%s - %s Position %d (%s-%s): %s",
		p.LeagueID, p.Name, p.Position,
		p.StartDate.Format(DateLayout), p.EndDate.Format(DateLayout),
		p.Amount.StringFixed(2))
}

// Period is an inclusive date range.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls within the period, both ends inclusive.
func (p Period) Contains(d time.Time) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

func (p Period) String() string {
	return p.Start.Format(DateLayout) + ".." + p.End.Format(DateLayout)
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ByPeriod orders payouts by start date then end date, the order in which
// they must be resolved.
func ByPeriod(a, b Payout) int {
	if c := a.StartDate.Compare(b.StartDate); c != 0 {
		return c
	}
	if c := a.EndDate.Compare(b.EndDate); c != 0 {
		return c
	}
	// stable for equal periods
	if a.Position != b.Position {
		return a.Position - b.Position
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}
