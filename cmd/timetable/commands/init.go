package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacentio/timetable/store"
)

func newInitCmd(app *App) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the DynamoDB tables",
		Long: `Create the entity, relationship and unique constraint tables named by the
configuration. Existing tables are left alone. TTL is enabled on new tables
and the entity table streams new and old images for the cascade handler.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}
			admin, ok := client.(store.TableAdmin)
			if !ok {
				return errors.New("client cannot create tables")
			}
			if err := store.CreateTables(cmd.Context(), admin, app.Config.Store, wait); err != nil {
				return err
			}
			app.Logger.Info("tables ready",
				"entity_table", app.Config.Store.EntityTable,
				"relationship_table", app.Config.Store.RelationshipTable,
				"unique_table", app.Config.Store.UniqueTable,
			)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Minute, "how long to wait for each new table to become active")
	return cmd
}
