package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rendis/joblint/internal/resolver"
	"github.com/rendis/joblint/internal/scheduler"
	"github.com/rendis/joblint/pkg/mcp"
)

const refreshTask = "refresh-stages"

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the linter to MCP clients over stdio",
		Long: `Run an MCP server on standard input and output exposing joblint.verify,
joblint.diagram and the stage registry tools.

Registry names are cached in memory and reloaded on the --refresh schedule,
a cron expression or descriptor such as "@every 5m". Changes made through
the registry tools are visible immediately.

Examples:
  joblint serve
  joblint serve --refresh "*/10 * * * *"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh, _ := cmd.Flags().GetString("refresh")
			return a.runServe(cmd.Context(), refresh)
		},
	}
	cmd.Flags().String("refresh", a.cfg.Refresh, "Schedule for reloading registry names")
	return cmd
}

func (a *app) runServe(ctx context.Context, refresh string) error {
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	// The snapshot answers once loaded; until then the registry is asked.
	snap := resolver.NewSnapshot(st, a.logger)
	if err := snap.Refresh(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial stage snapshot failed", slog.String("error", err.Error()))
	}
	chain := resolver.Chain{snap, resolver.NewRegistry(st, a.logger)}

	sched := scheduler.NewScheduler(0, a.logger)
	if err := sched.Add(refresh, refreshTask, snap.Refresh); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	srv := mcp.NewServer(mcp.ServerDeps{
		Store:    st,
		Resolver: &servedResolver{Chain: chain, snap: snap},
		Logger:   a.logger,
		Version:  version,
	})
	a.logger.InfoContext(ctx, "serving MCP on stdio", slog.String("refresh", refresh))
	return srv.Serve(ctx)
}

// servedResolver exposes the snapshot's Refresh so registry tools can
// reload it after a change.
type servedResolver struct {
	resolver.Chain
	snap *resolver.Snapshot
}

func (r *servedResolver) Refresh(ctx context.Context) error {
	return r.snap.Refresh(ctx)
}
