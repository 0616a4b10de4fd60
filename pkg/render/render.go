// Package render draws a network topology as a Graphviz node-link diagram.
// Nodes are manholes/junctions, edges are pipe segments flowing top to
// bottom; convergent nodes and roots get distinct styling, and computed
// depths show up in labels.
package render

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/openhydro/sewerflow/pkg/network"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed includes elevations and depths in node and edge labels.
	// When false, only identifiers are shown.
	Detailed bool

	// Highlight marks the given segment ids, typically the impacted set of
	// the last recalculation cycle.
	Highlight []int64
}

// ToDOT converts a topology to Graphviz DOT format. The result can be
// rendered with [ToSVG].
func ToDOT(t *network.Topology, opts Options) string {
	highlight := make(map[int64]bool, len(opts.Highlight))
	for _, id := range opts.Highlight {
		highlight[id] = true
	}

	var buf bytes.Buffer
	buf.WriteString("digraph network {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=10];\n")
	buf.WriteString("  edge [fontsize=9];\n")
	buf.WriteString("\n")

	nodes := t.Nodes()
	keys := make([]string, 0, len(nodes))
	byKey := make(map[string]*network.Node, len(nodes))
	for _, n := range nodes {
		keys = append(keys, n.Key)
		byKey[n.Key] = n
	}
	slices.Sort(keys)

	for _, key := range keys {
		n := byKey[key]
		attrs := nodeAttrs(n, opts.Detailed)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.Key, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, id := range t.SegmentIDs() {
		seg, _ := t.Segment(id)
		attrs := edgeAttrs(seg, opts.Detailed, highlight[id])
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", seg.UpKey, seg.DownKey, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n *network.Node, detailed bool) []string {
	label := n.Key
	if detailed {
		var parts []string
		if n.Elev != nil {
			parts = append(parts, fmt.Sprintf("elev %.2f", *n.Elev))
		}
		if n.Depth != nil {
			parts = append(parts, fmt.Sprintf("depth %.2f", *n.Depth))
		}
		if len(parts) > 0 {
			label += "\n" + strings.Join(parts, "\n")
		}
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case n.IsConvergent():
		attrs = append(attrs, "shape=doublecircle", "fillcolor=lightyellow")
	case n.IsRoot():
		attrs = append(attrs, "fillcolor=lightblue")
	}
	return attrs
}

func edgeAttrs(seg *network.Segment, detailed, highlighted bool) []string {
	label := fmt.Sprintf("#%d", seg.ID)
	if detailed && seg.DownDepth != nil {
		label += fmt.Sprintf("\n%.2fm @ %.2f", seg.Length, *seg.DownDepth)
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	if highlighted {
		attrs = append(attrs, "color=red", "penwidth=2")
	}
	return attrs
}

// ToSVG renders a DOT graph to SVG using Graphviz.
func ToSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
