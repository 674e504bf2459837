package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/timetable/store"
)

func newRmCmd(app *App) *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "rm <tree-id>",
		Short: "Delete a saved timetable",
		Long: `Mark a saved timetable for deletion. Without --cascade the command refuses
to delete a timetable that still has days. With --cascade the root is marked
and the stream handler removes every descendant.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.store(cmd.Context())
			if err != nil {
				return err
			}
			opts := store.DeleteOptions{Cascade: cascade, OrphanProtect: !cascade}
			if err := s.DeleteTree(cmd.Context(), args[0], opts); err != nil {
				return fmt.Errorf("rm %s: %w", args[0], err)
			}
			app.Logger.Info("timetable deleted", "tree", args[0], "cascade", cascade)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "delete the timetable's days, periods, courses and instructors too")
	return cmd
}
