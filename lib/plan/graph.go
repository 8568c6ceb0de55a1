// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"strings"
)

// DOT renders the plan's job graph in Graphviz dot syntax. Jobs flow
// left to right along needs edges; skipped jobs render dashed and
// gray. The output is stable: nodes in declaration order, edges in
// needs order.
func (p *Plan) DOT() string {
	var b strings.Builder
	b.WriteString("digraph workflow {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, fontname=\"monospace\"];\n")

	for _, job := range p.Jobs {
		// Job IDs are validated identifiers, safe inside DOT quotes
		// without escaping. `\n` is a dot line break, not Go's.
		attrs := fmt.Sprintf(`label="%s"`, job.ID)
		if job.Disposition == DispositionSkip {
			attrs = fmt.Sprintf(`label="%s\n(skipped)", style=dashed, color=gray50, fontcolor=gray50`, job.ID)
		}
		fmt.Fprintf(&b, "  %q [%s];\n", job.ID, attrs)
	}

	for _, job := range p.Jobs {
		for _, need := range job.Needs {
			fmt.Fprintf(&b, "  %q -> %q;\n", need, job.ID)
		}
	}

	b.WriteString("}\n")
	return b.String()
}
