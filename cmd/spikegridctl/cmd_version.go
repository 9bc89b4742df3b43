package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spikegrid/internal/storage"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"version":        version,
					"schema_version": storage.CurrentSchemaVersion,
					"codec_version":  storage.CurrentCodecVersion,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "spikegridctl version %s (schema v%d, codec v%d)\n",
				version, storage.CurrentSchemaVersion, storage.CurrentCodecVersion)
			return nil
		},
	}
}
