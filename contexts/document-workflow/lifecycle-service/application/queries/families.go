package queries

import (
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"
)

type StateSummary struct {
	Name     string
	Label    string
	Next     []string
	Terminal bool
}

type FamilySummary struct {
	Key          string
	Prefix       string
	Label        string
	InitialState string
	States       []StateSummary
}

type ListFamiliesUseCase struct {
	Registry *statemachine.Registry
}

func (uc ListFamiliesUseCase) Execute() []FamilySummary {
	graphs := uc.Registry.Families()
	items := make([]FamilySummary, 0, len(graphs))
	for _, graph := range graphs {
		items = append(items, summarizeGraph(graph))
	}
	return items
}

type DescribeFamilyUseCase struct {
	Registry *statemachine.Registry
}

func (uc DescribeFamilyUseCase) Execute(family string) (FamilySummary, error) {
	graph, err := uc.Registry.Graph(family)
	if err != nil {
		return FamilySummary{}, err
	}
	return summarizeGraph(graph), nil
}

func summarizeGraph(graph *statemachine.StateGraph) FamilySummary {
	summary := FamilySummary{
		Key:          graph.Family(),
		Prefix:       graph.Prefix(),
		Label:        graph.Label(),
		InitialState: graph.InitialState(),
	}
	for _, state := range graph.States() {
		summary.States = append(summary.States, StateSummary{
			Name:     state,
			Label:    graph.StateLabel(state),
			Next:     graph.LegalNextStates(state),
			Terminal: graph.IsTerminal(state),
		})
	}
	return summary
}
