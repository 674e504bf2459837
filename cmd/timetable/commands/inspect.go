package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/jacentio/timetable/loader"
)

func newInspectCmd(_ *App) *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the metadata of a timetable document as JSON",
		Long: `Load a timetable document, issue identifiers to every entity without one
and print the result as JSON.

The default output mirrors the containment tree. With --flat the output holds
one record list per kind (Days, Periods, Courses, Instructors), each record
naming the identifiers of its children.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}

			var out any = t.Metadata()
			if flat {
				out = t.Index()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "print one record list per kind instead of the nested tree")
	return cmd
}
