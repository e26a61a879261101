// Package resolver provides stage-existence resolvers for the verifier:
// a static allow-list, a live registry lookup, a periodically refreshed
// snapshot, and a chain that combines them.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rendis/joblint/internal/linter"
	"github.com/rendis/joblint/internal/logging"
	"github.com/rendis/joblint/internal/store"
	"github.com/rendis/joblint/pkg/schema"
)

// StageLookup fetches a single stage by name. store.Store satisfies it.
type StageLookup interface {
	GetStage(ctx context.Context, name string) (*store.Stage, error)
}

// StageLister lists every known stage name. store.Store satisfies it.
type StageLister interface {
	StageNames(ctx context.Context) ([]string, error)
}

// Static answers from a fixed set of names. Listed names exist, anything
// else does not. Names are compared exactly.
type Static struct {
	names  map[string]struct{}
	absent linter.Existence
}

// NewStatic creates a Static resolver over names.
func NewStatic(names ...string) *Static {
	return newStatic(linter.NotExist, names)
}

// Known is a Static that answers Unknown for unlisted names, so it can sit
// in front of other resolvers in a Chain.
func Known(names ...string) *Static {
	return newStatic(linter.Unknown, names)
}

func newStatic(absent linter.Existence, names []string) *Static {
	s := &Static{names: make(map[string]struct{}, len(names)), absent: absent}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s
}

func (s *Static) StageExists(_ context.Context, name string) linter.Existence {
	if _, ok := s.names[name]; ok {
		return linter.Exists
	}
	return s.absent
}

// Registry asks a StageLookup on every call. Lookup failures other than
// not-found yield Unknown so an unreachable registry degrades to warnings.
type Registry struct {
	lookup StageLookup
	logger *slog.Logger
}

// NewRegistry creates a Registry resolver. logger may be nil.
func NewRegistry(lookup StageLookup, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{lookup: lookup, logger: logger}
}

func (r *Registry) StageExists(ctx context.Context, name string) linter.Existence {
	_, err := r.lookup.GetStage(ctx, name)
	switch {
	case err == nil:
		return linter.Exists
	case errors.Is(err, schema.ErrNotFound):
		return linter.NotExist
	default:
		r.logger.WarnContext(ctx, "stage registry lookup failed",
			slog.String("stage", name), slog.String("error", err.Error()))
		return linter.Unknown
	}
}

// Snapshot answers from an in-memory copy of a StageLister's names.
// Until the first successful Refresh it answers Unknown.
type Snapshot struct {
	lister StageLister
	logger *slog.Logger

	mu       sync.RWMutex
	names    map[string]struct{}
	loadedAt time.Time
}

// NewSnapshot creates an empty Snapshot. logger may be nil.
func NewSnapshot(lister StageLister, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Snapshot{lister: lister, logger: logger}
}

// Refresh reloads the name set. On failure the previous set is kept.
func (s *Snapshot) Refresh(ctx context.Context) error {
	names, err := s.lister.StageNames(ctx)
	if err != nil {
		logging.LogWith(ctx, s.logger).Warn("stage snapshot refresh failed", slog.String("error", err.Error()))
		return err
	}

	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	s.mu.Lock()
	s.names = set
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "stage snapshot refreshed", slog.Int("stages", len(set)))
	return nil
}

// LoadedAt reports when the snapshot was last refreshed; zero if never.
func (s *Snapshot) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *Snapshot) StageExists(_ context.Context, name string) linter.Existence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.names == nil {
		return linter.Unknown
	}
	if _, ok := s.names[name]; ok {
		return linter.Exists
	}
	return linter.NotExist
}

// Chain asks each resolver in order and returns the first answer that is
// not Unknown. An empty chain answers Unknown.
type Chain []linter.StageResolver

func (c Chain) StageExists(ctx context.Context, name string) linter.Existence {
	for _, r := range c {
		if r == nil {
			continue
		}
		if e := r.StageExists(ctx, name); e != linter.Unknown {
			return e
		}
	}
	return linter.Unknown
}
