package statemachine

import (
	"fmt"
	"strings"

	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
)

// StateGraph is the immutable transition table of one document family.
type StateGraph struct {
	family  string
	prefix  string
	label   string
	initial string
	states  []string
	labels  map[string]string
	next    map[string][]string
	edges   map[string]map[string]struct{}
}

// NewStateGraph validates a family definition and freezes it into a graph.
// Every declared state must be reachable from the initial state.
func NewStateGraph(def entities.FamilyDefinition) (*StateGraph, error) {
	family := strings.TrimSpace(def.Key)
	prefix := strings.TrimSpace(def.Prefix)
	initial := strings.TrimSpace(def.InitialState)
	if family == "" || prefix == "" {
		return nil, fmt.Errorf("%w: family key and prefix are required", domainerrors.ErrInvalidFamilyDefinition)
	}
	if len(def.States) == 0 {
		return nil, fmt.Errorf("%w: %s declares no states", domainerrors.ErrInvalidFamilyDefinition, family)
	}

	g := &StateGraph{
		family:  family,
		prefix:  prefix,
		label:   strings.TrimSpace(def.Label),
		initial: initial,
		states:  make([]string, 0, len(def.States)),
		labels:  make(map[string]string, len(def.States)),
		next:    make(map[string][]string, len(def.States)),
		edges:   make(map[string]map[string]struct{}, len(def.States)),
	}
	for _, state := range def.States {
		name := strings.TrimSpace(state.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: %s has a state without name", domainerrors.ErrInvalidFamilyDefinition, family)
		}
		if _, exists := g.edges[name]; exists {
			return nil, fmt.Errorf("%w: %s declares state %q twice", domainerrors.ErrInvalidFamilyDefinition, family, name)
		}
		g.states = append(g.states, name)
		g.labels[name] = strings.TrimSpace(state.Label)
		g.edges[name] = make(map[string]struct{}, len(state.Next))
		g.next[name] = make([]string, 0, len(state.Next))
		for _, target := range state.Next {
			target = strings.TrimSpace(target)
			if _, dup := g.edges[name][target]; dup {
				continue
			}
			g.edges[name][target] = struct{}{}
			g.next[name] = append(g.next[name], target)
		}
	}

	if _, ok := g.edges[initial]; !ok {
		return nil, fmt.Errorf("%w: %s initial state %q is not declared", domainerrors.ErrInvalidFamilyDefinition, family, initial)
	}
	for _, from := range g.states {
		for _, to := range g.next[from] {
			if _, ok := g.edges[to]; !ok {
				return nil, fmt.Errorf("%w: %s edge %s -> %s targets an undeclared state",
					domainerrors.ErrInvalidFamilyDefinition, family, from, to)
			}
		}
	}
	reached := g.reachable()
	for _, state := range g.states {
		if _, ok := reached[state]; !ok {
			return nil, fmt.Errorf("%w: %s state %q is unreachable from %q",
				domainerrors.ErrInvalidFamilyDefinition, family, state, initial)
		}
	}
	return g, nil
}

func (g *StateGraph) reachable() map[string]struct{} {
	seen := map[string]struct{}{g.initial: {}}
	queue := []string{g.initial}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, target := range g.next[current] {
			if _, ok := seen[target]; ok {
				continue
			}
			seen[target] = struct{}{}
			queue = append(queue, target)
		}
	}
	return seen
}

func (g *StateGraph) Family() string       { return g.family }
func (g *StateGraph) Prefix() string       { return g.prefix }
func (g *StateGraph) Label() string        { return g.label }
func (g *StateGraph) InitialState() string { return g.initial }

// States returns the declared states in declaration order.
func (g *StateGraph) States() []string {
	return append([]string(nil), g.states...)
}

func (g *StateGraph) StateLabel(state string) string {
	if label := g.labels[state]; label != "" {
		return label
	}
	return state
}

func (g *StateGraph) HasState(state string) bool {
	_, ok := g.edges[state]
	return ok
}

func (g *StateGraph) IsTerminal(state string) bool {
	edges, ok := g.edges[state]
	return ok && len(edges) == 0
}

func (g *StateGraph) TerminalStates() []string {
	var terminal []string
	for _, state := range g.states {
		if len(g.next[state]) == 0 {
			terminal = append(terminal, state)
		}
	}
	return terminal
}

// LegalNextStates returns the allowed targets of from in declaration order.
// Unknown states have no legal targets.
func (g *StateGraph) LegalNextStates(from string) []string {
	return append([]string{}, g.next[from]...)
}

// CanTransition reports whether to is listed as a next state of from. Self
// transitions follow the same rule as any other edge.
func (g *StateGraph) CanTransition(from string, to string) bool {
	edges, ok := g.edges[from]
	if !ok {
		return false
	}
	_, ok = edges[to]
	return ok
}
