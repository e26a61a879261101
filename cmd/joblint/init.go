package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/joblint/internal/expressions"
	"github.com/rendis/joblint/internal/logging"
	"github.com/rendis/joblint/internal/scheduler"
)

func newInitCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write ~/.joblint/settings.json and create the stage registry",
		Long: `Write the current configuration, adjusted by the flags below, to
~/.joblint/settings.json and create the stage registry database.

Examples:
  joblint init --registry
  joblint init --fail-on 'errors > 0 || warnings > 10' --refresh "@every 1m"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg := a.cfg
			cfg.FailOn, _ = flags.GetString("fail-on")
			cfg.Registry, _ = flags.GetBool("registry")
			cfg.Refresh, _ = flags.GetString("refresh")
			cfg.Concurrency, _ = flags.GetInt("concurrency")
			cfg.NoColor, _ = flags.GetBool("no-color")
			force, _ := flags.GetBool("force")

			if err := checkConfig(cfg); err != nil {
				return err
			}
			if _, err := os.Stat(settingsPath()); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", settingsPath())
			}

			path, err := writeConfig(cfg)
			if err != nil {
				return fmt.Errorf("write settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)

			a.cfg = cfg
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Stage registry ready at %s\n", cfg.DBPath)
			return nil
		},
	}

	cmd.Flags().String("fail-on", a.cfg.FailOn, "Default CEL failure policy")
	cmd.Flags().Bool("registry", a.cfg.Registry, "Consult the registry in lint and graph by default")
	cmd.Flags().String("refresh", a.cfg.Refresh, "Default registry refresh schedule for serve")
	cmd.Flags().Int("concurrency", a.cfg.Concurrency, "Default number of files linted at once")
	cmd.Flags().Bool("no-color", a.cfg.NoColor, "Disable colored output by default")
	cmd.Flags().Bool("force", false, "Overwrite an existing settings file")
	return cmd
}

// checkConfig rejects settings that would fail every later command.
func checkConfig(cfg Config) error {
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return err
	}
	if _, err := expressions.NewGate(cel, cfg.FailOn); err != nil {
		return fmt.Errorf("invalid fail-on policy: %w", err)
	}
	if _, err := scheduler.NewScheduler(0, nil).CalculateNextRun(cfg.Refresh, time.Now()); err != nil {
		return fmt.Errorf("invalid refresh schedule: %w", err)
	}
	return nil
}
