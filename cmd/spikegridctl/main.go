package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"spikegrid/internal/config"
	"spikegrid/internal/logging"
	"spikegrid/pkg/spikegrid"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spikegridctl",
		Short: "Spiking neuron grid simulator",
		Long: `spikegridctl builds spiking neuron networks on a 3D grid, runs scripted
experiments against them and manages stored network snapshots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory|sqlite (overrides config)")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace|debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSnapshotsCmd(),
		newPlaceCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

// loadConfig resolves the config file, SPIKEGRID_* variables and flags, in
// that order of precedence from lowest to highest.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Storage.Kind = v
	}
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		if !logging.ValidLevel(v) {
			return nil, fmt.Errorf("invalid log level: %s", v)
		}
		cfg.Logging.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openClient returns an initialized client. Callers must invoke the returned
// close function.
func openClient(ctx context.Context, cmd *cobra.Command) (*spikegrid.Client, func(), error) {
	return openClientWith(ctx, cmd, spikegrid.Options{})
}

func openClientWith(ctx context.Context, cmd *cobra.Command, opts spikegrid.Options) (*spikegrid.Client, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())

	opts.Config = cfg
	opts.Logger = logger
	client, err := spikegrid.New(opts)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing client", "error", err)
		}
	}
	if err := client.Init(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return client, closeFn, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
