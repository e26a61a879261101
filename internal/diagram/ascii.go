package diagram

import (
	"fmt"
	"strings"
)

// availabilityTag returns a short indicator for a node's availability.
func availabilityTag(avail string) string {
	switch avail {
	case AvailExists:
		return "[REGISTRY]"
	case AvailUnknown:
		return "[?]"
	case AvailMissing:
		return "[MISSING]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as a text diagram, one level per row,
// followed by the branch edges.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", model.Title)
	}

	for i, level := range model.Levels {
		var boxes []asciiBox
		for _, id := range level {
			if node := model.Node(id); node != nil {
				boxes = append(boxes, makeBox(node))
			}
		}
		renderBoxRow(&b, boxes)
		if i < len(model.Levels)-1 && len(boxes) > 0 {
			b.WriteString("       │\n")
			b.WriteString("       ▼\n")
		}
	}

	var branches []Edge
	for _, e := range model.Edges {
		if e.Label != EdgeNext {
			branches = append(branches, e)
		}
	}
	if len(branches) > 0 {
		b.WriteString("\n--- branches ---\n")
		for _, e := range branches {
			fmt.Fprintf(&b, "  %s ─%s→ %s\n", labelOf(model, e.From), e.Label, labelOf(model, e.To))
		}
	}

	for _, node := range model.Nodes {
		for _, sg := range node.Children {
			fmt.Fprintf(&b, "\n--- %s %s ---\n", firstLine(node.Label), sg.Label)
			for i, sub := range sg.Nodes {
				fmt.Fprintf(&b, "  %d. %s\n", i+1, firstLine(sub.Label))
			}
		}
	}

	return b.String()
}

func labelOf(model *DiagramModel, id string) string {
	if n := model.Node(id); n != nil {
		return firstLine(n.Label)
	}
	return id
}

type asciiBox struct {
	lines []string
	width int
}

func makeBox(node *Node) asciiBox {
	content := strings.Split(node.Label, "\n")
	if tag := availabilityTag(node.Availability); tag != "" {
		content = append(content, tag)
	}

	maxLen := 0
	for _, line := range content {
		if n := len([]rune(line)); n > maxLen {
			maxLen = n
		}
	}
	width := maxLen + 4

	lines := make([]string, 0, len(content)+2)
	lines = append(lines, "┌"+strings.Repeat("─", width-2)+"┐")
	for _, c := range content {
		pad := strings.Repeat(" ", maxLen-len([]rune(c)))
		lines = append(lines, "│ "+c+pad+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")

	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	maxHeight := 0
	for _, box := range boxes {
		maxHeight = max(maxHeight, len(box.lines))
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
