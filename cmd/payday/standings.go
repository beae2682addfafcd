package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/internal/domain/ranking"
	"github.com/okian/payday/internal/domain/types"
)

var errNoGameweeks = errors.New("no gameweeks stored; pass --start and --end")

func newStandingsCmd() *cobra.Command {
	var (
		start, end string
		paidOnly   bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "standings LEAGUE",
		Short: "Print a league table over a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			league, err := c.store.League(ctx, args[0])
			if err != nil {
				return err
			}
			period, err := standingsPeriod(ctx, c.store, start, end)
			if err != nil {
				return err
			}
			ranked, err := c.source.RankedParticipants(ctx, league, period)
			if err != nil {
				return fmt.Errorf("rank %s over %s: %w", league.ID, period, err)
			}
			if paidOnly {
				ranked = ranking.PaidOnly(ranked)
			}
			rows := types.Standings(league, ranked)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			printStandings(cmd.OutOrStdout(), league, period, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Period start date YYYY-MM-DD (default: first gameweek)")
	cmd.Flags().StringVar(&end, "end", "", "Period end date YYYY-MM-DD (default: last gameweek)")
	cmd.Flags().BoolVar(&paidOnly, "paid-only", false, "Hide entrants who have not paid their entry")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// standingsPeriod parses the flags, filling blanks from the season calendar.
func standingsPeriod(ctx context.Context, reader ranking.PerformanceReader, start, end string) (model.Period, error) {
	var p model.Period
	if start == "" || end == "" {
		gws, err := reader.Gameweeks(ctx)
		if err != nil {
			return p, err
		}
		if len(gws) == 0 {
			return p, errNoGameweeks
		}
		p.Start, p.End = gws[0].StartDate, gws[0].EndDate
		for _, gw := range gws[1:] {
			if gw.StartDate.Before(p.Start) {
				p.Start = gw.StartDate
			}
			if gw.EndDate.After(p.End) {
				p.End = gw.EndDate
			}
		}
	}
	if start != "" {
		d, err := model.ParseDate(start)
		if err != nil {
			return p, fmt.Errorf("--start: %w", err)
		}
		p.Start = d
	}
	if end != "" {
		d, err := model.ParseDate(end)
		if err != nil {
			return p, fmt.Errorf("--end: %w", err)
		}
		p.End = d
	}
	if p.End.Before(p.Start) {
		return p, fmt.Errorf("period %s ends before it starts", p)
	}
	return p, nil
}

func printStandings(out io.Writer, league model.League, period model.Period, rows []types.Standing) {
	fmt.Fprintf(out, "%s (%s)\n", league.Name, period)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTEAM\tMANAGER\tSCORE\tPAID")
	for _, r := range rows {
		paid := "no"
		if r.PaidEntry {
			paid = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", r.Rank, r.TeamName, r.ParticipantID, r.Score, paid)
	}
	_ = tw.Flush()
}
