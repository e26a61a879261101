package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// ImageFormat selects the graphviz output.
type ImageFormat string

const (
	ImagePNG ImageFormat = "png"
	ImageSVG ImageFormat = "svg"
	ImageDOT ImageFormat = "dot"
)

func (f ImageFormat) graphviz() (graphviz.Format, error) {
	switch f {
	case ImagePNG:
		return graphviz.PNG, nil
	case ImageSVG:
		return graphviz.SVG, nil
	case ImageDOT:
		return graphviz.XDOT, nil
	default:
		return "", fmt.Errorf("diagram: unsupported image format %q", string(f))
	}
}

// RenderDOT renders a DiagramModel as graphviz DOT source.
func RenderDOT(ctx context.Context, model *DiagramModel) (string, error) {
	out, err := RenderImage(ctx, model, ImageDOT)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// RenderImage lays out a DiagramModel with graphviz and returns the encoded output.
func RenderImage(ctx context.Context, model *DiagramModel, format ImageFormat) ([]byte, error) {
	gvFormat, err := format.graphviz()
	if err != nil {
		return nil, err
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		gvNode, err := graph.CreateNodeByName(node.ID)
		if err != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, err)
		}
		gvNode.SetLabel(firstLine(node.Label))
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	for _, node := range model.Nodes {
		for _, sg := range node.Children {
			sub, err := graph.CreateSubGraphByName("cluster_" + node.ID + "_" + sg.Label)
			if err != nil {
				return nil, fmt.Errorf("diagram: create cluster for %s: %w", node.ID, err)
			}
			sub.SetLabel(firstLine(node.Label) + " " + sg.Label)
			sub.SetStyle(cgraph.DashedGraphStyle)

			for _, subNode := range sg.Nodes {
				gvSub, err := sub.CreateNodeByName(subNode.ID)
				if err != nil {
					return nil, fmt.Errorf("diagram: create node %s: %w", subNode.ID, err)
				}
				gvSub.SetLabel(subNode.Label)
				gvSub.SetShape(cgraph.NoteShape)
				gvNodes[subNode.ID] = gvSub
			}
			for _, edge := range sg.Edges {
				if err := addEdge(graph, gvNodes, edge); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, edge := range model.Edges {
		if err := addEdge(graph, gvNodes, edge); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", string(format), err)
	}
	return buf.Bytes(), nil
}

func addEdge(graph *cgraph.Graph, gvNodes map[string]*cgraph.Node, edge Edge) error {
	from, to := gvNodes[edge.From], gvNodes[edge.To]
	if from == nil || to == nil {
		return nil
	}
	e, err := graph.CreateEdgeByName("", from, to)
	if err != nil {
		return fmt.Errorf("diagram: create edge %s -> %s: %w", edge.From, edge.To, err)
	}
	switch edge.Label {
	case EdgeSuccess:
		e.SetLabel(edge.Label)
		e.SetColor("#2d6a2d")
	case EdgeFailure:
		e.SetLabel(edge.Label)
		e.SetColor("#8b1a1a")
		e.SetStyle(cgraph.DashedEdgeStyle)
	}
	return nil
}

// applyNodeStyle sets shape by kind and fill by availability.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindStage:
		gvNode.SetShape(cgraph.BoxShape)
	case NodeKindExternal:
		gvNode.SetShape(cgraph.EllipseShape)
	case NodeKindStart, NodeKindEnd:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	}

	fill, font := "", "white"
	switch node.Availability {
	case AvailDeclared:
		fill = "#2d6a2d"
	case AvailExists:
		fill = "#1a5276"
	case AvailUnknown:
		fill = "#b7791a"
	case AvailMissing:
		fill = "#8b1a1a"
	}
	if fill != "" {
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor(fill)
		gvNode.SetFontColor(font)
	}
}
