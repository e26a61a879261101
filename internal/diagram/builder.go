package diagram

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/joblint/internal/linter"
	"github.com/rendis/joblint/pkg/schema"
)

const (
	startID = "__start__"
	endID   = "__end__"
)

// Build constructs a DiagramModel from a job document. Sequence references
// are lower-cased the way the verifier resolves them; stages not declared in
// the job are looked up through resolver, which may be nil.
//
// Build is best-effort: malformed entries are skipped, since the verifier
// reports them. It fails only when no entry names a stage.
func Build(ctx context.Context, doc schema.Value, resolver linter.StageResolver) (*DiagramModel, error) {
	if resolver == nil {
		resolver = linter.UnknownResolver
	}

	entries, _ := doc.Get("sequence").Sequence()
	declared := declaredStages(doc)

	b := &modelBuilder{
		ctx:      ctx,
		resolver: resolver,
		declared: declared,
		index:    make(map[string]*Node),
		seen:     make(map[Edge]bool),
	}

	var order []string
	for _, entry := range entries {
		name, ok := entry.Get("stage").Str()
		if !ok {
			continue
		}
		id := b.node(name)
		if len(order) == 0 || order[len(order)-1] != id {
			order = append(order, id)
		}
		for _, branch := range []struct{ key, label string }{
			{"on_success", EdgeSuccess},
			{"on_failure", EdgeFailure},
		} {
			target, ok := entry.Get(branch.key).Str()
			if !ok {
				continue
			}
			b.edge(id, b.node(target), branch.label)
		}
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("diagram: job has no sequence entry naming a stage")
	}

	b.edge(startID, order[0], EdgeNext)
	for i := 1; i < len(order); i++ {
		b.edge(order[i-1], order[i], EdgeNext)
	}
	b.edge(order[len(order)-1], endID, EdgeNext)

	nodes := make([]*Node, 0, len(b.nodes)+2)
	nodes = append(nodes, &Node{ID: startID, Label: "Start", Kind: NodeKindStart})
	nodes = append(nodes, b.nodes...)
	nodes = append(nodes, &Node{ID: endID, Label: "End", Kind: NodeKindEnd})

	return &DiagramModel{
		Title:  titleFromDoc(doc),
		Nodes:  nodes,
		Edges:  b.edges,
		Levels: buildLevels(order, b.nodes),
	}, nil
}

type modelBuilder struct {
	ctx      context.Context
	resolver linter.StageResolver
	declared map[string]schema.Value

	nodes []*Node
	index map[string]*Node
	edges []Edge
	seen  map[Edge]bool
}

// node returns the ID for a stage reference, creating the node on first use.
func (b *modelBuilder) node(ref string) string {
	name := strings.ToLower(ref)
	id := safeID(name)
	if _, ok := b.index[id]; ok {
		return id
	}

	n := &Node{ID: id, Label: name}
	if stage, ok := b.declared[name]; ok {
		n.Kind = NodeKindStage
		n.Availability = AvailDeclared
		if v, ok := stage.Get("version").Str(); ok {
			n.Label = name + "\n" + v
		}
		if sg := stepsSubGraph(id, stage); sg != nil {
			n.Children = append(n.Children, sg)
		}
	} else {
		n.Kind = NodeKindExternal
		n.Availability = availability(b.resolver.StageExists(b.ctx, name))
	}

	b.nodes = append(b.nodes, n)
	b.index[id] = n
	return id
}

func (b *modelBuilder) edge(from, to, label string) {
	e := Edge{From: from, To: to, Label: label}
	if b.seen[e] {
		return
	}
	b.seen[e] = true
	b.edges = append(b.edges, e)
}

// declaredStages indexes the stage catalog by name. The first declaration
// of a name wins.
func declaredStages(doc schema.Value) map[string]schema.Value {
	out := make(map[string]schema.Value)
	stages, _ := doc.Get("stages").Sequence()
	for _, st := range stages {
		name, ok := st.Get("name").Str()
		if !ok {
			continue
		}
		if _, dup := out[name]; !dup {
			out[name] = st
		}
	}
	return out
}

// stepsSubGraph chains the steps of a declared stage in order.
func stepsSubGraph(parentID string, stage schema.Value) *SubGraph {
	steps, ok := stage.Get("steps").Sequence()
	if !ok || len(steps) == 0 {
		return nil
	}

	sg := &SubGraph{Label: "steps"}
	for i, step := range steps {
		id := fmt.Sprintf("%s.step%d", parentID, i)
		label := fmt.Sprintf("step %d", i+1)
		if action, ok := step.Get("action").Str(); ok && action != "" {
			label = action
		}
		sg.Nodes = append(sg.Nodes, &Node{ID: id, Label: label, Kind: NodeKindStage})
		if i > 0 {
			sg.Edges = append(sg.Edges, Edge{From: sg.Nodes[i-1].ID, To: id})
		}
	}
	return sg
}

func availability(e linter.Existence) string {
	switch e {
	case linter.Exists:
		return AvailExists
	case linter.NotExist:
		return AvailMissing
	default:
		return AvailUnknown
	}
}

// buildLevels puts each sequence entry on its own level, followed by one
// level for stages reached only through branches.
func buildLevels(order []string, nodes []*Node) [][]string {
	levels := make([][]string, 0, len(order)+3)
	levels = append(levels, []string{startID})

	placed := make(map[string]bool, len(nodes))
	for _, id := range order {
		if placed[id] {
			continue
		}
		placed[id] = true
		levels = append(levels, []string{id})
	}

	var branchOnly []string
	for _, n := range nodes {
		if !placed[n.ID] {
			branchOnly = append(branchOnly, n.ID)
		}
	}
	if len(branchOnly) > 0 {
		levels = append(levels, branchOnly)
	}

	return append(levels, []string{endID})
}

func titleFromDoc(doc schema.Value) string {
	if name, ok := doc.Get("name").Str(); ok && name != "" {
		return name
	}
	return "Job"
}

// safeID keeps letters, digits and underscores; anything else becomes '_'.
func safeID(name string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if id == "" || id == startID || id == endID {
		id = "stage_" + id
	}
	return id
}
