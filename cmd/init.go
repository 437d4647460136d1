package cmd

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"bqstats/internal/config"
	"bqstats/internal/ui"
	apperrors "bqstats/pkg/errors"
)

// newWizard is swapped in tests to script the prompts
var newWizard = ui.NewConfigWizard

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a bqstats configuration file interactively",
		Long: `Walk through the connection and stats table settings and save them to
~/.bqstats/config.yaml (or $BQSTATS_CONFIG). Flags and BQSTATS_* environment
variables still override the saved values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wizard := newWizard()

			if config.Exists() && !force {
				overwrite := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("%s already exists. Overwrite it?", config.GetConfigFile()),
					Default: false,
				}
				if err := wizard.Asker().AskOne(prompt, &overwrite); err != nil {
					return err
				}
				if !overwrite {
					ui.ShowInfo("Initialization cancelled.")
					return nil
				}
			}

			current, err := config.Load()
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "Failed to load existing configuration").
					WithContext("file", config.GetConfigFile())
			}

			cfg, err := wizard.Run(current)
			if errors.Is(err, ui.ErrWizardCancelled) {
				ui.ShowInfo("Initialization cancelled.")
				return nil
			}
			if err != nil {
				return err
			}

			if err := config.Save(cfg); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeFileOperation, "Failed to save configuration").
					WithContext("file", config.GetConfigFile())
			}

			ui.ShowSuccess(fmt.Sprintf("Configuration saved to %s", config.GetConfigFile()))
			ui.ShowInfo("Run 'bqstats' to record stats, or 'bqstats schema --check' to verify the table.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration without asking")
	return cmd
}
