package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/joblint/internal/decode"
	"github.com/rendis/joblint/internal/diagram"
	"github.com/rendis/joblint/internal/expressions"
	"github.com/rendis/joblint/internal/runner"
	"github.com/rendis/joblint/internal/store"
	"github.com/rendis/joblint/pkg/schema"
)

// refresher is implemented by resolvers that cache the registry.
type refresher interface {
	Refresh(ctx context.Context) error
}

// handleVerify lints a job document and returns the report.
func (s *Server) handleVerify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError("document is required"), nil
	}
	format, err := decode.ParseFormat(req.GetString("format", string(decode.FormatYAML)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, err := runner.New(runner.Options{
		Resolver: s.resolver,
		Strict:   mcp.ParseBoolean(req, "strict", false),
		Select:   req.GetString("select", ""),
		Filter:   req.GetString("filter", ""),
		FailOn:   req.GetString("fail_on", ""),
		Logger:   s.logger,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid options: %v", err)), nil
	}

	rep, err := r.RunBytes(ctx, req.GetString("source", "-"), []byte(document), format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("verification failed: %v", err)), nil
	}
	return marshalResult(rep)
}

// handleDiagram draws the sequence of a job document in the requested format.
func (s *Server) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError("document is required"), nil
	}
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}

	doc, err := decode.DecodeBytes([]byte(document), decode.FormatYAML)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err = decode.Select(ctx, expressions.NewGoJQEngine(), doc, req.GetString("select", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	model, err := diagram.Build(ctx, doc, s.resolver)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", err)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	case "dot", "svg":
		out, err := diagram.RenderImage(ctx, model, diagram.ImageFormat(format))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	case "png":
		png, err := diagram.RenderImage(ctx, model, diagram.ImagePNG)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", err)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	default:
		return mcp.NewToolResultError("format must be ascii, mermaid, dot, svg, or png"), nil
	}
}

// handleStages lists registry entries.
func (s *Server) handleStages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return noRegistry(), nil
	}
	stages, err := s.store.ListStages(ctx, store.StageFilter{
		Name:  req.GetString("name", ""),
		Limit: mcp.ParseInt(req, "limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	if stages == nil {
		stages = []*store.Stage{}
	}
	return marshalResult(map[string]any{"stages": stages})
}

// handleRegisterStage adds or replaces a stage version.
func (s *Server) handleRegisterStage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return noRegistry(), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}

	st := &store.Stage{
		Name:        name,
		Version:     req.GetString("version", ""),
		Description: req.GetString("description", ""),
	}
	if steps := mcp.ParseArgument(req, "steps", nil); steps != nil {
		raw, err := json.Marshal(steps)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid steps: %v", err)), nil
		}
		st.Steps = raw
	}

	if err := s.store.RegisterStage(ctx, st); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to register stage: %v", err)), nil
	}
	s.refresh(ctx)

	return marshalResult(map[string]any{
		"name":    st.Name,
		"version": st.Version,
	})
}

// handleDeleteStage removes one version of a stage, or all of them.
func (s *Server) handleDeleteStage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return noRegistry(), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	version := req.GetString("version", "")

	if err := s.store.DeleteStage(ctx, name, version); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete stage: %v", err)), nil
	}
	s.refresh(ctx)

	return marshalResult(map[string]any{
		"ok":      true,
		"name":    name,
		"version": version,
	})
}

// --- Internal helpers ---

// refresh reloads a caching resolver after the registry changed.
func (s *Server) refresh(ctx context.Context) {
	r, ok := s.resolver.(refresher)
	if !ok {
		return
	}
	if err := r.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "stage snapshot refresh failed", slog.String("error", err.Error()))
	}
}

func noRegistry() *mcp.CallToolResult {
	return mcp.NewToolResultError(schema.NewError(schema.ErrCodeStore, "no stage registry is configured").Error())
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
