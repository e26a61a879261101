package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/joblint/internal/linter"
	"github.com/rendis/joblint/internal/logging"
	"github.com/rendis/joblint/internal/resolver"
	"github.com/rendis/joblint/internal/store"
)

// app carries what every subcommand shares once flags are parsed.
type app struct {
	cfg    Config
	logger *slog.Logger
	stdin  io.Reader
}

func newRootCommand(stdin io.Reader) *cobra.Command {
	a := &app{cfg: loadConfig(), stdin: stdin}

	cmd := &cobra.Command{
		Use:   "joblint",
		Short: "Lint CI job definitions before they are submitted",
		Long: `joblint statically checks CI job definitions written in YAML or JSON.

It reports structural defects as errors and defaulting or style concerns as
warnings, and can consult a local registry of stages that jobs may run
without declaring them.

Configuration is read from ~/.joblint/settings.json and JOBLINT_* environment
variables; flags take precedence over both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				a.cfg.LogLevel, _ = flags.GetString("log-level")
			}
			if flags.Changed("log-json") {
				a.cfg.LogJSON, _ = flags.GetBool("log-json")
			}
			if flags.Changed("db") {
				a.cfg.DBPath, _ = flags.GetString("db")
			}
			level, err := logging.ParseLevel(a.cfg.LogLevel)
			if err != nil {
				return err
			}
			a.logger = logging.New(cmd.ErrOrStderr(), level, a.cfg.LogJSON)
			return nil
		},
	}

	cmd.PersistentFlags().String("log-level", a.cfg.LogLevel, "Log level: debug, info, warn, error")
	cmd.PersistentFlags().Bool("log-json", a.cfg.LogJSON, "Write logs as JSON lines")
	cmd.PersistentFlags().String("db", a.cfg.DBPath, "Stage registry database path")

	cmd.AddCommand(
		newLintCommand(a),
		newGraphCommand(a),
		newStageCommand(a),
		newServeCommand(a),
		newInitCommand(a),
		newVersionCommand(),
	)
	return cmd
}

// openStore opens and migrates the stage registry.
func (a *app) openStore(ctx context.Context) (*store.LibSQLStore, error) {
	path := a.cfg.DBPath
	if !strings.Contains(path, ":") {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
		path = "file:" + path
	}
	st, err := store.NewLibSQLStore(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// stageResolver builds the resolver for lint and graph: names given on the
// command line are known to exist, anything else is asked of the registry
// when enabled and is otherwise Unknown. The returned cleanup
// closes the registry.
func (a *app) stageResolver(ctx context.Context, names []string, useRegistry bool) (linter.StageResolver, func(), error) {
	var chain resolver.Chain
	if len(names) > 0 {
		chain = append(chain, resolver.Known(names...))
	}
	cleanup := func() {}
	if useRegistry {
		st, err := a.openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, resolver.NewRegistry(st, a.logger))
		cleanup = func() { st.Close() }
	}
	if len(chain) == 0 {
		return nil, cleanup, nil
	}
	return chain, cleanup, nil
}
