package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"spikegrid/internal/stats"
	"spikegrid/pkg/spikegrid"
)

type runOutput struct {
	RunID    string                     `json:"run_id"`
	Result   spikegrid.ScenarioResult   `json:"result"`
	Snapshot *spikegrid.SnapshotSummary `json:"snapshot,omitempty"`
	RunDir   string                     `json:"run_dir,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scripted scenario against a fresh network",
		Long: `Build the network a scenario describes and run its actions in order,
printing the neurons each wave fired and the final reward value.

Examples:
  spikegridctl run chain.yaml
  spikegridctl run chain.yaml --clock-for 200ms --save "after training"
  spikegridctl run chain.yaml --artifacts-dir runs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			save, _ := cmd.Flags().GetString("save")
			clockFor, _ := cmd.Flags().GetDuration("clock-for")
			artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")

			sc, err := spikegrid.LoadScenario(args[0])
			if err != nil {
				return err
			}

			client, closeFn, err := openClientWith(ctx, cmd, spikegrid.Options{Scenario: &sc})
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := client.RunScenario(ctx, sc)
			if err != nil {
				return fmt.Errorf("running scenario: %w", err)
			}

			if clockFor > 0 {
				if err := client.StartClock(); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
				case <-time.After(clockFor):
				}
				client.StopClock()
				if result.RewardValue, err = client.RewardValue(); err != nil {
					return err
				}
				if result.Stats, err = client.Stats(); err != nil {
					return err
				}
			}

			out := runOutput{RunID: uuid.NewString(), Result: result}
			if cmd.Flags().Changed("save") {
				summary, err := client.SaveSnapshot(ctx, save)
				if err != nil {
					return err
				}
				out.Snapshot = &summary
			}
			if artifactsDir != "" {
				if out.RunDir, err = writeRunArtifacts(client, artifactsDir, args[0], clockFor, out); err != nil {
					return fmt.Errorf("writing run artifacts: %w", err)
				}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printRun(cmd, out)
			return nil
		},
	}

	cmd.Flags().String("save", "", "Save a snapshot with this label after the run")
	cmd.Flags().Duration("clock-for", 0, "Run the background clock for this long after the actions")
	cmd.Flags().String("artifacts-dir", "", "Write run artifacts and the run index under this directory")
	return cmd
}

func writeRunArtifacts(client *spikegrid.Client, baseDir, scenarioPath string, clockFor time.Duration, out runOutput) (string, error) {
	cfg := client.Config()
	seed, err := client.Seed()
	if err != nil {
		return "", err
	}

	artifacts := stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:         out.RunID,
			ScenarioPath:  scenarioPath,
			Seed:          seed,
			Workers:       cfg.Simulation.Workers,
			MaxShellLevel: cfg.Simulation.MaxShellLevel,
			StoreKind:     cfg.Storage.Kind,
		},
		Result: out.Result,
	}
	if clockFor > 0 {
		artifacts.Config.ClockFor = clockFor.String()
	}
	if out.Snapshot != nil {
		artifacts.SnapshotID = out.Snapshot.ID
	}

	runDir, err := stats.WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		return "", err
	}
	err = stats.AppendRunIndex(baseDir, stats.RunIndexEntry{
		RunID:        out.RunID,
		ScenarioPath: scenarioPath,
		Seed:         seed,
		Neurons:      out.Result.Stats.Neurons,
		Synapses:     out.Result.Stats.Synapses,
		Fires:        out.Result.Stats.Fires,
		FinalReward:  out.Result.RewardValue,
		MeanReward:   stats.SummarizeSeries(out.Result.RewardHistory).Mean,
		SnapshotID:   artifacts.SnapshotID,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
	})
	return runDir, err
}

func printRun(cmd *cobra.Command, out runOutput) {
	w := cmd.OutOrStdout()
	for _, wave := range out.Result.Waves {
		header := fmt.Sprintf("[%d] %s", wave.Index, wave.Kind)
		if wave.Target != "" {
			header += " " + wave.Target
		}
		if wave.Detail != "" {
			header += " " + wave.Detail
		}
		fmt.Fprintln(w, header)
		if len(wave.Fired) > 0 {
			names := make([]string, 0, len(wave.Fired))
			for _, f := range wave.Fired {
				names = append(names, fmt.Sprintf("%s@%s", f.Name, f.Position))
			}
			fmt.Fprintf(w, "    fired: %s\n", strings.Join(names, " "))
		}
		fmt.Fprintf(w, "    reward: %d\n", wave.RewardValue)
	}
	s := out.Result.Stats
	fmt.Fprintf(w, "neurons=%d synapses=%d fires=%d reward=%d\n",
		s.Neurons, s.Synapses, s.Fires, out.Result.RewardValue)
	if out.Snapshot != nil {
		fmt.Fprintf(w, "saved snapshot %s\n", out.Snapshot.ID)
	}
	if out.RunDir != "" {
		fmt.Fprintf(w, "artifacts in %s\n", out.RunDir)
	}
}
