package expressions

import "context"

// Engine evaluates an expression against a data map.
// Three implementations: CEL (gate policies), Expr (finding filters), GoJQ (document queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
