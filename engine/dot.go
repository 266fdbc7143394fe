package engine

import (
	"fmt"
	"io"
	"strings"
)

// WriteDOT renders the graph in Graphviz DOT form. Nodes are shaped by
// owner, accepting states are double-circled, and edges carry their action
// or guard labels.
func (g *Graph) WriteDOT(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("digraph ProductGame {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=circle];\n\n")

	sb.WriteString("  start [shape=point];\n")
	fmt.Fprintf(&sb, "  start -> %q;\n\n", g.Init.String())

	for _, n := range g.Nodes {
		shape := "circle"
		switch n.Owner {
		case PlayerRobot:
			shape = "box"
		case PlayerEnvironment:
			shape = "diamond"
		}
		if g.IsAccepting(n.State) {
			shape = "doublecircle"
		}
		label := n.State.String()
		if n.Label != "" {
			label += "\\n{" + n.Label + "}"
		}
		fmt.Fprintf(&sb, "  %q [shape=%s, label=\"%s\"];\n", n.State.String(), shape, strings.ReplaceAll(label, `"`, `\"`))
	}
	sb.WriteString("\n")

	for _, e := range g.Edges {
		var label string
		switch {
		case e.Action != MoveNone:
			label = e.Action.String()
		case len(e.Guards) > 0:
			label = strings.Join(e.Guards, " | ")
		case e.Probability > 0:
			label = fmt.Sprintf("p=%.2f", e.Probability)
		}
		if label == "" {
			fmt.Fprintf(&sb, "  %q -> %q;\n", e.From.String(), e.To.String())
			continue
		}
		fmt.Fprintf(&sb, "  %q -> %q [label=%q];\n", e.From.String(), e.To.String(), label)
	}

	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
