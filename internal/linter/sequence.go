package linter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rendis/joblint/pkg/schema"
)

func (v *Verifier) verifySequence(ctx context.Context, sequence schema.Value) error {
	if sequence.Kind() != schema.KindSequence {
		v.status.Error("The Sequence is not defined as an Array.")
	}
	if sequence.IsEmpty() {
		v.status.Error("The Sequence is defined but empty?")
	}

	// Every stage the sequence may run: stage, on_success and on_failure.
	var deps []string
	seen := make(map[string]struct{})
	addDep := func(field string, ref schema.Value) error {
		s, ok := ref.Str()
		if !ok {
			return fmt.Errorf("%s reference %q is a %s, not a stage name", field, ref.String(), ref.Kind())
		}
		dep := strings.ToLower(s)
		if _, dup := seen[dep]; !dup {
			seen[dep] = struct{}{}
			deps = append(deps, dep)
		}
		return nil
	}

	for _, entry := range members(sequence) {
		if entry.Kind() != schema.KindMapping {
			v.status.Error("A Stage in the Sequence is defined that is not an Object?")
			continue
		}
		if !entry.Has("stage") {
			v.status.Error("A Stage in the Sequence does not name a Stage to run.")
			continue
		}

		name := entry.Get("stage")
		// Entries have no version field; the stage is always run at its latest.
		v.status.Warning(fmt.Sprintf("A Stage in the Sequence does not specify a version for the "+
			"Stage '%s'. The latest will always be used.", name.String()))

		if err := addDep("stage", name); err != nil {
			return err
		}
		for _, field := range []string{"on_success", "on_failure"} {
			if !entry.Has(field) {
				continue
			}
			if err := addDep(field, entry.Get(field)); err != nil {
				return err
			}
		}
	}

	for _, dep := range deps {
		// Declared names keep their case while dependencies are lower-cased,
		// so "Build" does not satisfy a reference to "build".
		if _, ok := v.adHocStages[dep]; ok {
			continue
		}

		existence := v.resolver.StageExists(ctx, dep)
		v.logger.DebugContext(ctx, "resolved external stage",
			slog.String("stage", dep),
			slog.String("existence", existence.String()),
		)

		switch existence {
		case Unknown:
			v.status.Warning(fmt.Sprintf("The Stage '%s' in the Sequence is not defined in this job and "+
				"may not exist on the server.", dep))
		case NotExist:
			v.status.Error(fmt.Sprintf("The Stage '%s' in the Sequence is not defined in this job and "+
				"does not exist on the server.", dep))
		}
	}
	return nil
}
