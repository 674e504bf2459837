package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/timetable/loader"
)

func newPushCmd(app *App) *cobra.Command {
	var tree string
	cmd := &cobra.Command{
		Use:   "push <file>",
		Short: "Save a timetable document and print its tree id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}
			s, err := app.store(cmd.Context())
			if err != nil {
				return err
			}

			if tree == "" {
				tree, err = s.SaveTree(cmd.Context(), t)
			} else {
				err = s.SaveTreeAs(cmd.Context(), tree, t)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tree)
			return nil
		},
	}
	cmd.Flags().StringVar(&tree, "tree", "", "tree id to save under (default: a new random id)")
	return cmd
}
