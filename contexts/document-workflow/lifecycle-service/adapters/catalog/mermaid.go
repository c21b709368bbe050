package catalog

import (
	"fmt"
	"strings"

	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"
)

// RenderMermaid renders a family graph as a Mermaid state diagram.
func RenderMermaid(graph *statemachine.StateGraph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "---\ntitle: %s (%s)\n---\n", graph.Family(), graph.Prefix())
	b.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&b, "    [*] --> %s\n", graph.InitialState())
	for _, state := range graph.States() {
		if label := graph.StateLabel(state); label != state {
			fmt.Fprintf(&b, "    %s : %s\n", state, label)
		}
	}
	for _, state := range graph.States() {
		for _, target := range graph.LegalNextStates(state) {
			fmt.Fprintf(&b, "    %s --> %s\n", state, target)
		}
	}
	for _, state := range graph.TerminalStates() {
		fmt.Fprintf(&b, "    %s --> [*]\n", state)
	}
	return b.String()
}
