package expressions

import (
	"context"
	"fmt"

	"github.com/rendis/joblint/pkg/schema"
)

// DefaultGatePolicy fails a lint run when any error was found.
const DefaultGatePolicy = "errors > 0"

// Gate decides whether a lint result fails, using a CEL policy.
type Gate struct {
	engine *CELEngine
	policy string
}

// NewGate compiles policy eagerly so typos surface before any document is
// linted. An empty policy means DefaultGatePolicy.
func NewGate(engine *CELEngine, policy string) (*Gate, error) {
	if policy == "" {
		policy = DefaultGatePolicy
	}
	if err := engine.Check(policy); err != nil {
		return nil, err
	}
	return &Gate{engine: engine, policy: policy}, nil
}

// Policy returns the CEL source of the gate.
func (g *Gate) Policy() string { return g.policy }

// Fails evaluates the policy against a finding log and the linted document.
func (g *Gate) Fails(ctx context.Context, log *schema.FindingLog, job schema.Value) (bool, error) {
	out, err := g.engine.Evaluate(ctx, g.policy, GateData(log, job))
	if err != nil {
		return false, err
	}
	failed, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"gate policy %q returned %T, want bool", g.policy, out)
	}
	return failed, nil
}

// GateData builds the CEL activation for a lint result.
func GateData(log *schema.FindingLog, job schema.Value) map[string]any {
	findings := make([]any, 0, log.Len())
	for _, f := range log.Findings() {
		findings = append(findings, map[string]any{"type": f.Kind.String(), "text": f.Text})
	}
	data := map[string]any{
		"errors":   int64(log.Errors()),
		"warnings": int64(log.Warnings()),
		"findings": findings,
	}
	if doc := job.Interface(); doc != nil {
		data["job"] = doc
	}
	return data
}

func (g *Gate) String() string {
	return fmt.Sprintf("gate(%s)", g.policy)
}
