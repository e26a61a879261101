package linter

import "context"

// Existence is the tri-state answer of a stage lookup against an external catalog.
type Existence int

const (
	Unknown Existence = iota
	NotExist
	Exists
)

func (e Existence) String() string {
	switch e {
	case NotExist:
		return "not_exist"
	case Exists:
		return "exists"
	default:
		return "unknown"
	}
}

// StageResolver answers whether a stage that is not declared in the job
// document exists in some external catalog (e.g. a server-side registry).
type StageResolver interface {
	StageExists(ctx context.Context, name string) Existence
}

// ResolverFunc adapts a plain function to StageResolver.
type ResolverFunc func(ctx context.Context, name string) Existence

func (f ResolverFunc) StageExists(ctx context.Context, name string) Existence {
	return f(ctx, name)
}

// UnknownResolver is used when no catalog is wired in. It never knows.
var UnknownResolver StageResolver = ResolverFunc(func(context.Context, string) Existence {
	return Unknown
})
