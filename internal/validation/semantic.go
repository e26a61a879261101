package validation

import (
	"fmt"
	"strings"

	"github.com/rendis/joblint/pkg/schema"
)

// validateSemantic performs checks that JSON Schema cannot express:
// duplicate stage declarations, repeated sequence entries and branch targets
// that have no sequence entry of their own.
func validateSemantic(doc schema.Value) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if stages, ok := doc.Get("stages").Sequence(); ok {
		first := make(map[string]int, len(stages))
		for i, stage := range stages {
			name, ok := stage.Get("name").Str()
			if !ok {
				continue
			}
			if prev, dup := first[name]; dup {
				result.AddWarning(fmt.Sprintf("/stages/%d/name", i), schema.ErrCodeDuplicate,
					fmt.Sprintf("stage %q is already declared at /stages/%d", name, prev))
				continue
			}
			first[name] = i
		}
	}

	entries, ok := doc.Get("sequence").Sequence()
	if !ok {
		return result
	}

	listed := make(map[string]int, len(entries))
	for i, entry := range entries {
		name, ok := entry.Get("stage").Str()
		if !ok {
			continue
		}
		key := strings.ToLower(name)
		if prev, dup := listed[key]; dup {
			result.AddWarning(fmt.Sprintf("/sequence/%d/stage", i), schema.ErrCodeDuplicate,
				fmt.Sprintf("stage %q already runs at /sequence/%d", name, prev))
			continue
		}
		listed[key] = i
	}

	for i, entry := range entries {
		for _, branch := range branchKeys {
			target, ok := entry.Get(branch).Str()
			if !ok {
				continue
			}
			if _, found := listed[strings.ToLower(target)]; !found {
				result.AddWarning(fmt.Sprintf("/sequence/%d/%s", i, branch), schema.ErrCodeValidation,
					fmt.Sprintf("%s target %q has no entry in the sequence", branch, target))
			}
		}
	}

	return result
}
