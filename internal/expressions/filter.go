package expressions

import (
	"context"

	"github.com/rendis/joblint/pkg/schema"
)

// FindingFilter selects findings for display with an Expr predicate over
// `kind` ("warning" or "error") and `text`. It never alters a FindingLog.
type FindingFilter struct {
	engine    *ExprEngine
	predicate string
}

// NewFindingFilter validates the predicate against a sample finding.
func NewFindingFilter(engine *ExprEngine, predicate string) (*FindingFilter, error) {
	f := &FindingFilter{engine: engine, predicate: predicate}
	if predicate == "" {
		return f, nil
	}
	if _, err := f.Match(context.Background(), schema.Finding{}); err != nil {
		return nil, err
	}
	return f, nil
}

// Match reports whether the finding passes the filter. An empty predicate
// matches everything.
func (f *FindingFilter) Match(ctx context.Context, finding schema.Finding) (bool, error) {
	if f == nil || f.predicate == "" {
		return true, nil
	}
	out, err := f.engine.Evaluate(ctx, f.predicate, map[string]any{
		"kind": finding.Kind.String(),
		"text": finding.Text,
	})
	if err != nil {
		return false, err
	}
	keep, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"filter %q returned %T, want bool", f.predicate, out)
	}
	return keep, nil
}

// Apply returns the findings that pass the filter, in order.
func (f *FindingFilter) Apply(ctx context.Context, findings []schema.Finding) ([]schema.Finding, error) {
	out := make([]schema.Finding, 0, len(findings))
	for _, finding := range findings {
		keep, err := f.Match(ctx, finding)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, finding)
		}
	}
	return out, nil
}
