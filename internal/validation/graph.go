package validation

import (
	"sort"
	"strings"

	"github.com/rendis/joblint/pkg/schema"
)

var branchKeys = []string{"on_success", "on_failure"}

// validateGraph runs cycle detection (Kahn's algorithm) over the branch edges
// of the sequence. Stage names are compared lower-cased, the way the verifier
// resolves sequence references.
func validateGraph(doc schema.Value) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	entries, ok := doc.Get("sequence").Sequence()
	if !ok {
		return result
	}

	nodes := make(map[string]bool, len(entries))
	edges := make(map[string][]string, len(entries))
	inDegree := make(map[string]int, len(entries))

	for _, entry := range entries {
		from, ok := entry.Get("stage").Str()
		if !ok {
			continue
		}
		from = strings.ToLower(from)
		nodes[from] = true

		seen := make(map[string]bool, len(branchKeys))
		for _, branch := range branchKeys {
			to, ok := entry.Get(branch).Str()
			if !ok {
				continue
			}
			to = strings.ToLower(to)
			if seen[to] {
				continue
			}
			seen[to] = true
			nodes[to] = true
			edges[from] = append(edges[from], to)
			inDegree[to]++
		}
	}

	queue := make([]string, 0, len(nodes))
	for id := range nodes {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range edges[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(nodes) {
		var cyclic []string
		for id := range nodes {
			if inDegree[id] > 0 {
				cyclic = append(cyclic, id)
			}
		}
		sort.Strings(cyclic)
		result.AddWarning("/sequence", schema.ErrCodeCycle,
			"sequence branches form a cycle involving: "+strings.Join(cyclic, ", "))
	}

	return result
}
