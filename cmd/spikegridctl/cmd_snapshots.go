package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect stored network snapshots",
	}
	cmd.AddCommand(
		newSnapshotsListCmd(),
		newSnapshotsShowCmd(),
		newSnapshotsDeleteCmd(),
	)
	return cmd
}

func newSnapshotsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openClient(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			summaries, err := client.ListSnapshots(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots stored.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tCREATED\tNEURONS\tSYNAPSES\tREWARD")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
					s.ID, s.Label, humanize.Time(s.CreatedAt),
					humanize.Comma(int64(s.NeuronCount)), humanize.Comma(int64(s.SynapseCount)),
					s.RewardValue)
			}
			return tw.Flush()
		},
	}
}

func newSnapshotsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a snapshot's neurons, synapses and reward history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, closeFn, err := openClient(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			snap, ok, err := client.GetSnapshot(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("snapshot not found: %s", args[0])
			}
			history, _, err := client.RewardHistory(ctx, snap.ID)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"snapshot":       snap,
					"reward_history": history,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %q created %s, reward %d\n",
				snap.ID, snap.Label, humanize.Time(snap.CreatedAt), snap.RewardValue)
			fmt.Fprintf(w, "neurons (%s):\n", humanize.Comma(int64(len(snap.Neurons))))
			for _, n := range snap.Neurons {
				fmt.Fprintf(w, "  %-8s %-10s %s potential=%g input=%g exhaustion=%d\n",
					n.Type, n.Position, n.Phase, n.Potential, n.Input, n.ExhaustionLevel)
			}
			fmt.Fprintf(w, "synapses (%s):\n", humanize.Comma(int64(len(snap.Synapses))))
			for _, s := range snap.Synapses {
				fmt.Fprintf(w, "  %s -> %s strength=%d age=%d\n", s.Parent, s.Child, s.Strength, s.Age)
			}
			if len(history) > 0 {
				fmt.Fprintf(w, "reward history: %v\n", history)
			}
			return nil
		},
	}
}

func newSnapshotsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot and its reward history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := openClient(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := client.DeleteSnapshot(cmd.Context(), args[0]); err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"status": "deleted", "id": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted snapshot %s\n", args[0])
			return nil
		},
	}
}
