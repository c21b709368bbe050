package statemachine

import (
	"fmt"
	"strings"

	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
)

// Registry holds every configured family graph. It is built once at process start
// and only read afterwards, so it is safe for concurrent use.
type Registry struct {
	graphs map[string]*StateGraph
	order  []string
}

func NewRegistry(definitions []entities.FamilyDefinition) (*Registry, error) {
	r := &Registry{
		graphs: make(map[string]*StateGraph, len(definitions)),
		order:  make([]string, 0, len(definitions)),
	}
	prefixes := make(map[string]string, len(definitions))
	for _, def := range definitions {
		graph, err := NewStateGraph(def)
		if err != nil {
			return nil, err
		}
		if _, exists := r.graphs[graph.Family()]; exists {
			return nil, fmt.Errorf("%w: family %s declared twice", domainerrors.ErrInvalidFamilyDefinition, graph.Family())
		}
		if owner, exists := prefixes[graph.Prefix()]; exists {
			return nil, fmt.Errorf("%w: prefix %s used by %s and %s",
				domainerrors.ErrInvalidFamilyDefinition, graph.Prefix(), owner, graph.Family())
		}
		prefixes[graph.Prefix()] = graph.Family()
		r.graphs[graph.Family()] = graph
		r.order = append(r.order, graph.Family())
	}
	return r, nil
}

func (r *Registry) Graph(family string) (*StateGraph, error) {
	if r == nil {
		return nil, domainerrors.ErrUnknownFamily
	}
	graph, ok := r.graphs[strings.TrimSpace(family)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domainerrors.ErrUnknownFamily, family)
	}
	return graph, nil
}

// Families returns the graphs in configuration order.
func (r *Registry) Families() []*StateGraph {
	items := make([]*StateGraph, 0, len(r.order))
	for _, key := range r.order {
		items = append(items, r.graphs[key])
	}
	return items
}

func (r *Registry) CanTransition(family string, from string, to string) bool {
	graph, err := r.Graph(family)
	if err != nil {
		return false
	}
	return graph.CanTransition(from, to)
}

func (r *Registry) LegalNextStates(family string, from string) ([]string, error) {
	graph, err := r.Graph(family)
	if err != nil {
		return nil, err
	}
	return graph.LegalNextStates(from), nil
}
