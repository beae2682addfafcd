package model

import "time"

// Participant is an entrant's cumulative score over one period.
type Participant struct {
	ID        string
	Score     int
	PaidEntry bool
}

// RankedParticipant is a participant with its dense competition rank.
type RankedParticipant struct {
	Participant
	Rank int
}

// Gameweek is one scoring round of the season.
type Gameweek struct {
	Number    int
	StartDate time.Time
	EndDate   time.Time
}

// Performance is a participant's result for one gameweek.
type Performance struct {
	ParticipantID string
	Gameweek      int
	Points        int
	TransferCost  int
}

// Match is a head-to-head fixture between two participants of a league.
type Match struct {
	ID        string
	LeagueID  string
	Gameweek  int
	Home      string
	Away      string
	HomeScore int
	AwayScore int
}
