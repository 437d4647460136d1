package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bqstats/internal/schema"
	"bqstats/internal/ui"
	"bqstats/internal/warehouse"
	"bqstats/pkg/errors"
)

func newSchemaCmd(v *viper.Viper) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the stats table schema",
		Long: `Print the column layout bqstats writes. With --check, connect to BigQuery and
compare it with the live table; differences are reported but never migrated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			visualizer := schema.NewVisualizer(ui.ColorEnabled())

			ui.ShowHeader("Stats table schema")
			visualizer.RenderSchema(cmd.OutOrStdout(), schema.StatsSchema())

			if !check {
				return nil
			}

			cfg, timeout, err := settingsFromViper(v)
			if err != nil {
				_ = cmd.Usage()
				return err
			}

			tableID := warehouse.TableID(cfg.BigQuery.ProjectID, cfg.Stats.Dataset, cfg.Stats.Table)
			diffs, err := newCollector(collectorConfig(cfg, timeout), newLogger(cmd, cfg)).Drift(cmd.Context())
			if err != nil {
				if errors.IsNotFound(err) {
					ui.ShowInfo(fmt.Sprintf("Table %s does not exist yet; it is created on the next run.", tableID))
					return nil
				}
				return err
			}

			ui.ShowHeader("Drift against " + tableID)
			visualizer.RenderDifferences(cmd.OutOrStdout(), diffs)
			if len(diffs) > 0 {
				ui.ShowWarning(fmt.Sprintf("%d columns differ from the expected layout", len(diffs)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "compare with the live table (needs --project_id and --service_account_file)")
	return cmd
}
