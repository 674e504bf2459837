package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/timetable/loader"
)

func newPullCmd(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "pull <tree-id>",
		Short: "Print a saved timetable",
		Long: `Load a saved timetable and print it as a YAML document, the format read by
push and inspect, or as the JSON metadata tree with --format json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "yaml" && format != "json" {
				return fmt.Errorf("unsupported format: %s (supported: yaml, json)", format)
			}
			s, err := app.store(cmd.Context())
			if err != nil {
				return err
			}
			t, err := s.LoadTree(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("pull %s: %w", args[0], err)
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(t.Metadata())
			}
			return loader.Dump(cmd.OutOrStdout(), t)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml, json")
	return cmd
}
