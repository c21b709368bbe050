package entities

// StateDefinition declares one workflow state and the states it may move to.
type StateDefinition struct {
	Name  string
	Label string
	Next  []string
}

// FamilyDefinition is the configuration row of a document family: the prefix used
// for its sequence ids and its state graph.
type FamilyDefinition struct {
	Key          string
	Prefix       string
	Label        string
	InitialState string
	States       []StateDefinition
}
