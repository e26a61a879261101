// gen-diagrams renders the example jobs as diagrams for the README.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/joblint/internal/decode"
	"github.com/rendis/joblint/internal/diagram"
	"github.com/rendis/joblint/internal/resolver"
)

func main() {
	ctx := context.Background()

	jobs, err := filepath.Glob(filepath.Join("examples", "jobs", "*"))
	if err != nil || len(jobs) == 0 {
		fmt.Fprintln(os.Stderr, "no example jobs found under examples/jobs")
		os.Exit(1)
	}

	// Pretend the shared stages the examples lean on are registered.
	registry := resolver.Known("notify", "triage")

	outDir := filepath.Join("docs", "assets")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", outDir, err)
		os.Exit(1)
	}

	failed := false
	for _, path := range jobs {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := render(ctx, path, filepath.Join(outDir, base), registry); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func render(ctx context.Context, path, prefix string, registry *resolver.Static) error {
	doc, err := decode.File(path)
	if err != nil {
		return err
	}
	model, err := diagram.Build(ctx, doc, registry)
	if err != nil {
		return err
	}

	ascii := diagram.RenderASCII(model)
	if err := os.WriteFile(prefix+"-ascii.txt", []byte(ascii), 0o644); err != nil {
		return err
	}
	fmt.Printf("=== %s (ASCII) ===\n%s\n", path, ascii)

	mermaid := diagram.RenderMermaid(model)
	if err := os.WriteFile(prefix+"-mermaid.md", []byte("```mermaid\n"+mermaid+"\n```\n"), 0o644); err != nil {
		return err
	}

	png, err := diagram.RenderImage(ctx, model, diagram.ImagePNG)
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}
	if err := os.WriteFile(prefix+".png", png, 0o644); err != nil {
		return err
	}
	fmt.Printf("Written: %s.png (%d bytes)\n", prefix, len(png))
	return nil
}
