package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/joblint/internal/decode"
	"github.com/rendis/joblint/internal/diagram"
	"github.com/rendis/joblint/internal/expressions"
	"github.com/rendis/joblint/pkg/schema"
)

// graphConfig holds configuration for the graph command.
type graphConfig struct {
	Path     string
	Output   string
	OutFile  string
	Select   string
	Stages   []string
	Registry bool
}

func newGraphCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Draw the sequence of a job",
		Long: `Draw the stages a job runs, in order, with its success and failure
branches. Stages the job does not declare are marked by what the registry
knows about them.

Examples:
  joblint graph build.yml                          # ASCII diagram
  joblint graph build.yml -o mermaid               # Mermaid flowchart
  joblint graph build.yml -o svg --out build.svg   # Rendered with graphviz
  joblint graph build.yml -o png --out build.png --registry`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg := graphConfig{Path: args[0]}
			cfg.Output, _ = flags.GetString("output")
			cfg.OutFile, _ = flags.GetString("out")
			cfg.Select, _ = flags.GetString("select")
			cfg.Stages, _ = flags.GetStringSlice("stage")
			cfg.Registry, _ = flags.GetBool("registry")

			return a.runGraph(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringP("output", "o", "ascii", "Diagram format: ascii, mermaid, dot, svg or png")
	cmd.Flags().String("out", "", "Write the diagram to this file instead of standard output")
	cmd.Flags().String("select", "", "jq query locating the job inside the document")
	cmd.Flags().StringSlice("stage", nil, "Stage known to exist on the server (repeatable)")
	cmd.Flags().Bool("registry", a.cfg.Registry, "Resolve undeclared stages against the local registry")

	return cmd
}

func (a *app) runGraph(ctx context.Context, out io.Writer, cfg graphConfig) error {
	var doc schema.Value
	var err error
	if cfg.Path == "-" {
		doc, err = decode.Decode(a.stdin, decode.FormatYAML)
	} else {
		doc, err = decode.File(cfg.Path)
	}
	if err != nil {
		return err
	}
	if doc, err = decode.Select(ctx, expressions.NewGoJQEngine(), doc, cfg.Select); err != nil {
		return err
	}

	res, cleanup, err := a.stageResolver(ctx, cfg.Stages, cfg.Registry)
	if err != nil {
		return err
	}
	defer cleanup()

	model, err := diagram.Build(ctx, doc, res)
	if err != nil {
		return err
	}

	var rendered []byte
	switch cfg.Output {
	case "ascii":
		rendered = []byte(diagram.RenderASCII(model))
	case "mermaid":
		rendered = []byte(diagram.RenderMermaid(model))
	case "dot", "svg", "png":
		if cfg.Output == "png" && cfg.OutFile == "" {
			return fmt.Errorf("png output needs --out")
		}
		if rendered, err = diagram.RenderImage(ctx, model, diagram.ImageFormat(cfg.Output)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output %q: want ascii, mermaid, dot, svg or png", cfg.Output)
	}

	if cfg.OutFile != "" {
		return os.WriteFile(cfg.OutFile, rendered, 0o644)
	}
	_, err = out.Write(rendered)
	return err
}
