package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	service "github.com/okian/payday/internal/app"
)

func newProcessCmd() *cobra.Command {
	var leagueID string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Resolve every finished payout once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			svc := c.service(cfg)

			if leagueID != "" {
				report, err := svc.ProcessPeriodPayouts(ctx, leagueID)
				printReports(cmd.OutOrStdout(), map[string]service.CycleReport{leagueID: report})
				return err
			}
			reports, err := svc.ProcessAll(ctx)
			printReports(cmd.OutOrStdout(), reports)
			return err
		},
	}
	cmd.Flags().StringVar(&leagueID, "league", "", "Process only this league")
	return cmd
}

// printReports writes one line per resolved or skipped payout.
func printReports(out io.Writer, reports map[string]service.CycleReport) {
	ids := make([]string, 0, len(reports))
	for id := range reports {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEAGUE\tPAYOUT\tPOSITION\tPERIOD\tOUTCOME\tAMOUNT\tWINNERS")
	for _, id := range ids {
		r := reports[id]
		for _, res := range r.Resolved {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				id, res.PayoutID, res.Position, res.Period, res.Outcome,
				res.Amount.StringFixed(2), strings.Join(res.Winners, ","))
		}
		for _, s := range r.Skipped {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\tskipped:%s\t-\t-\n", id, s.PayoutID, s.Reason)
		}
	}
	_ = tw.Flush()
}
