package statemachine

import (
	"strings"

	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
)

// TransitionValidator is the single gate every status change passes through.
type TransitionValidator struct {
	Registry *Registry
}

func (v TransitionValidator) Validate(family string, current string, target string) error {
	graph, err := v.Registry.Graph(family)
	if err != nil {
		return err
	}
	current = strings.TrimSpace(current)
	target = strings.TrimSpace(target)
	if !graph.CanTransition(current, target) {
		return &domainerrors.IllegalTransitionError{
			Family: graph.Family(),
			From:   current,
			To:     target,
		}
	}
	return nil
}
