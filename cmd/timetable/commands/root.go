// Package commands implements the timetable command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jacentio/timetable/internal/config"
	"github.com/jacentio/timetable/store"
)

// App carries the state shared by the subcommands.
type App struct {
	ConfigFile  string
	MetricsFile string

	Config *config.Config
	Logger *slog.Logger

	// Connect builds the DynamoDB client. Nil uses Config.DynamoDB.
	Connect func(ctx context.Context, cfg *config.Config) (store.Client, error)

	client   store.Client
	registry *prometheus.Registry
}

// NewRootCmd returns the timetable command with every subcommand attached.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "timetable",
		Short: "Inspect and store school timetables",
		Long: `timetable works with timetable documents: YAML files describing a
timetable, its days, periods, courses and instructors.

Configuration is read from the --config file and TIMETABLE_* environment
variables, e.g. TIMETABLE_STORE_NUM_SHARDS=8 or TIMETABLE_AWS_PROFILE=school.

Examples:
  timetable inspect week.yaml          # Print the metadata tree as JSON
  timetable inspect week.yaml --flat   # Print one record list per kind
  timetable init                       # Create the DynamoDB tables
  timetable push week.yaml             # Save a timetable, print its tree id
  timetable pull <tree-id>             # Print a saved timetable as YAML
  timetable rm <tree-id> --cascade     # Delete a timetable and its entities`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(app.ConfigFile)
			if err != nil {
				return err
			}
			app.Config = cfg
			if app.Logger == nil {
				app.Logger = cfg.Logger(cmd.ErrOrStderr())
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app.MetricsFile == "" || app.registry == nil {
				return nil
			}
			if err := prometheus.WriteToTextfile(app.MetricsFile, app.registry); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&app.ConfigFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&app.MetricsFile, "metrics-file", "", "write store counters to this file in Prometheus text format")

	root.AddCommand(
		newInspectCmd(app),
		newInitCmd(app),
		newPushCmd(app),
		newPullCmd(app),
		newRmCmd(app),
	)
	return root
}

func (a *App) connect(ctx context.Context) (store.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	connect := a.Connect
	if connect == nil {
		connect = func(ctx context.Context, cfg *config.Config) (store.Client, error) {
			return cfg.DynamoDB(ctx)
		}
	}
	client, err := connect(ctx, a.Config)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

func (a *App) store(ctx context.Context) (*store.Store, error) {
	client, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	a.registry = prometheus.NewRegistry()
	return store.New(client, a.Config.Store,
		store.WithLogger(a.Logger),
		store.WithMetrics(store.NewMetrics(a.registry)),
	), nil
}
