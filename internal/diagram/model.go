// Package diagram draws the stage graph of a job: the sequence order plus
// its on_success and on_failure branches.
package diagram

// NodeKind classifies a diagram node.
type NodeKind string

const (
	NodeKindStage    NodeKind = "stage"    // declared under stages
	NodeKindExternal NodeKind = "external" // referenced but not declared
	NodeKindStart    NodeKind = "start"
	NodeKindEnd      NodeKind = "end"
)

// Node availability as resolved for external stages.
const (
	AvailDeclared = "declared"
	AvailExists   = "exists"
	AvailUnknown  = "unknown"
	AvailMissing  = "missing"
)

// Edge labels.
const (
	EdgeNext    = ""
	EdgeSuccess = "success"
	EdgeFailure = "failure"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node is one stage in the diagram.
type Node struct {
	ID           string
	Label        string
	Kind         NodeKind
	Availability string
	Children     []*SubGraph // steps of a declared stage
}

// SubGraph holds the steps of a declared stage.
type SubGraph struct {
	Label string
	Nodes []*Node
	Edges []Edge
}

// Edge connects two node IDs.
type Edge struct {
	From  string
	To    string
	Label string
}

// Node returns the node with the given ID, or nil.
func (m *DiagramModel) Node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
