package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/rendis/joblint/internal/decode"
	"github.com/rendis/joblint/internal/report"
	"github.com/rendis/joblint/internal/runner"
)

// lintConfig holds configuration for one lint invocation.
type lintConfig struct {
	Paths       []string
	InputFormat string
	Output      string
	Strict      bool
	SchemaPath  string
	Select      string
	Filter      string
	FailOn      string
	Stages      []string
	Registry    bool
	NoColor     bool
	Concurrency int
	Watch       bool
}

func newLintCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint [file...]",
		Short: "Check job definitions and report errors and warnings",
		Long: `Check one or more job definitions. With no file, or with "-", the job is
read from standard input.

Every finding is reported; linting does not stop at the first problem. The
command exits with status 1 when any document fails the --fail-on policy,
a CEL expression over errors, warnings, findings and job.

Examples:
  joblint lint build.yml                      # Lint one file
  joblint lint jobs/*.yml --output json       # Machine-readable report
  cat job.json | joblint lint --input-format json
  joblint lint ci.yml --select '.jobs.release' # Lint a job nested in a larger file
  joblint lint build.yml --registry           # Consult the local stage registry
  joblint lint build.yml --stage notify       # Treat "notify" as an existing stage
  joblint lint build.yml --strict             # Add JSON Schema and graph checks
  joblint lint build.yml --fail-on 'errors + warnings > 0'
  joblint lint build.yml --filter 'kind == "error"'
  joblint lint jobs/*.yml --watch             # Re-lint files as they change`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg := lintConfig{Paths: args}
			cfg.InputFormat, _ = flags.GetString("input-format")
			cfg.Output, _ = flags.GetString("output")
			cfg.Strict, _ = flags.GetBool("strict")
			cfg.SchemaPath, _ = flags.GetString("schema")
			cfg.Select, _ = flags.GetString("select")
			cfg.Filter, _ = flags.GetString("filter")
			cfg.FailOn, _ = flags.GetString("fail-on")
			cfg.Stages, _ = flags.GetStringSlice("stage")
			cfg.Registry, _ = flags.GetBool("registry")
			cfg.NoColor, _ = flags.GetBool("no-color")
			cfg.Concurrency, _ = flags.GetInt("concurrency")
			cfg.Watch, _ = flags.GetBool("watch")

			return a.runLint(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().String("input-format", "yaml", "Encoding of standard input: yaml or json")
	cmd.Flags().StringP("output", "o", "text", "Report format: text or json")
	cmd.Flags().Bool("strict", false, "Also validate against the job JSON Schema and check branch cycles")
	cmd.Flags().String("schema", "", "JSON Schema file replacing the built-in one (implies --strict)")
	cmd.Flags().String("select", "", "jq query locating the job inside the document")
	cmd.Flags().String("filter", "", `expr predicate choosing which findings to show, e.g. kind == "error"`)
	cmd.Flags().String("fail-on", a.cfg.FailOn, "CEL policy deciding failure (default: errors > 0)")
	cmd.Flags().StringSlice("stage", nil, "Stage known to exist on the server (repeatable)")
	cmd.Flags().Bool("registry", a.cfg.Registry, "Resolve undeclared stages against the local registry")
	cmd.Flags().Bool("no-color", a.cfg.NoColor, "Disable colored output")
	cmd.Flags().Int("concurrency", a.cfg.Concurrency, "Files linted at once (default: number of CPUs)")
	cmd.Flags().BoolP("watch", "w", false, "Re-lint files whenever they change")

	return cmd
}

func (a *app) runLint(ctx context.Context, out io.Writer, cfg lintConfig) error {
	if cfg.Output != "text" && cfg.Output != "json" {
		return fmt.Errorf("unknown output %q: want text or json", cfg.Output)
	}
	stdin := len(cfg.Paths) == 0 || slices.Equal(cfg.Paths, []string{"-"})
	if !stdin && slices.Contains(cfg.Paths, "-") {
		return fmt.Errorf(`"-" cannot be combined with file paths`)
	}
	if cfg.Watch && stdin {
		return fmt.Errorf("--watch needs file paths")
	}

	var schemaBytes []byte
	if cfg.SchemaPath != "" {
		data, err := os.ReadFile(cfg.SchemaPath)
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		schemaBytes = data
		cfg.Strict = true
	}

	res, cleanup, err := a.stageResolver(ctx, cfg.Stages, cfg.Registry)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := runner.New(runner.Options{
		Resolver:    res,
		Strict:      cfg.Strict,
		Schema:      schemaBytes,
		Select:      cfg.Select,
		Filter:      cfg.Filter,
		FailOn:      cfg.FailOn,
		Concurrency: cfg.Concurrency,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	if cfg.Watch {
		return a.watch(ctx, out, r, cfg)
	}

	var reports []*report.Report
	if stdin {
		format, err := decode.ParseFormat(cfg.InputFormat)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return fmt.Errorf("read standard input: %w", err)
		}
		rep, err := r.RunBytes(ctx, "-", data, format)
		if err != nil {
			return err
		}
		reports = append(reports, rep)
	} else {
		if reports, err = r.RunFiles(ctx, cfg.Paths); err != nil {
			return err
		}
	}

	if err := writeReports(out, cfg, reports...); err != nil {
		return err
	}
	for _, rep := range reports {
		if rep.Failed {
			return errLintFailed
		}
	}
	return nil
}

func writeReports(out io.Writer, cfg lintConfig, reports ...*report.Report) error {
	if cfg.Output == "json" {
		return report.WriteJSON(out, reports...)
	}
	return report.WriteText(out, report.TextOptions{Color: !cfg.NoColor}, reports...)
}

// watch lints every path once, then again each time one is written, until
// ctx ends. Parent directories are watched because editors often replace a
// file on save instead of writing it in place.
func (a *app) watch(ctx context.Context, out io.Writer, r *runner.Runner, cfg lintConfig) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	watched := make(map[string]bool, len(cfg.Paths))
	dirs := make(map[string]bool)
	for _, p := range cfg.Paths {
		p = filepath.Clean(p)
		watched[p] = true
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	reports, err := r.RunFiles(ctx, cfg.Paths)
	if err != nil {
		return err
	}
	if err := writeReports(out, cfg, reports...); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(ev.Name)
			if !watched[name] || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			a.logger.DebugContext(ctx, "job changed", slog.String("path", name), slog.String("op", ev.Op.String()))
			rep, err := r.RunFile(ctx, name)
			if err != nil {
				return err
			}
			if err := writeReports(out, cfg, rep); err != nil {
				return err
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.WarnContext(ctx, "watch error", slog.String("error", err.Error()))
		}
	}
}
