package store

import "context"

// Store defines the stage registry contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Stages
	RegisterStage(ctx context.Context, stage *Stage) error
	GetStage(ctx context.Context, name string) (*Stage, error)
	GetStageVersion(ctx context.Context, name, version string) (*Stage, error)
	ListStages(ctx context.Context, filter StageFilter) ([]*Stage, error)
	StageNames(ctx context.Context) ([]string, error)
	DeleteStage(ctx context.Context, name, version string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
