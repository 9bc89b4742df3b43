package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"spikegrid/internal/stats"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List scenario runs recorded with --artifacts-dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("artifacts-dir")
			limit, _ := cmd.Flags().GetInt("limit")

			entries, err := stats.ListRunIndex(dir)
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSCENARIO\tWHEN\tNEURONS\tFIRES\tREWARD\tMEAN")
			for _, e := range entries {
				when := e.CreatedAtUTC
				if ts, err := time.Parse(time.RFC3339Nano, e.CreatedAtUTC); err == nil {
					when = humanize.Time(ts)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f\n",
					e.RunID, e.ScenarioPath, when,
					humanize.Comma(int64(e.Neurons)), humanize.Comma(e.Fires),
					e.FinalReward, e.MeanReward)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("artifacts-dir", "runs", "Directory holding the run index")
	cmd.Flags().Int("limit", 0, "Show at most this many runs (0 for all)")
	return cmd
}
