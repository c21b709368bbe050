package statemachine

import (
	"errors"
	"testing"

	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractDefinition() entities.FamilyDefinition {
	return entities.FamilyDefinition{
		Key:          "CONTRACT",
		Prefix:       "VIH-CON",
		Label:        "Business contract",
		InitialState: "draft",
		States: []entities.StateDefinition{
			{Name: "draft", Next: []string{"pending_review", "cancelled"}},
			{Name: "pending_review", Next: []string{"reviewing", "draft", "cancelled"}},
			{Name: "reviewing", Next: []string{"signed", "pending_review", "cancelled"}},
			{Name: "signed", Next: []string{"effective", "cancelled"}},
			{Name: "effective", Next: []string{"executing", "terminated"}},
			{Name: "executing", Next: []string{"completed", "terminated", "cancelled"}},
			{Name: "completed"},
			{Name: "terminated"},
			{Name: "cancelled"},
		},
	}
}

func opportunityDefinition() entities.FamilyDefinition {
	return entities.FamilyDefinition{
		Key:          "OPPORTUNITY",
		Prefix:       "OPP",
		InitialState: "potential",
		States: []entities.StateDefinition{
			{Name: "potential", Next: []string{"initial_contact", "cancelled"}},
			{Name: "initial_contact", Next: []string{"requirement_confirmed", "potential", "cancelled"}},
			{Name: "requirement_confirmed", Next: []string{"quotation", "initial_contact", "cancelled"}},
			{Name: "quotation", Next: []string{"negotiation", "requirement_confirmed", "cancelled"}},
			{Name: "negotiation", Next: []string{"won", "lost", "quotation", "cancelled"}},
			{Name: "won"},
			{Name: "lost"},
			{Name: "cancelled"},
		},
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry([]entities.FamilyDefinition{contractDefinition(), opportunityDefinition()})
	require.NoError(t, err)
	return registry
}

func TestContractGraphEdges(t *testing.T) {
	registry := testRegistry(t)
	graph, err := registry.Graph("CONTRACT")
	require.NoError(t, err)

	assert.Equal(t, "draft", graph.InitialState())
	assert.Equal(t, "VIH-CON", graph.Prefix())
	assert.Equal(t, []string{"pending_review", "cancelled"}, graph.LegalNextStates("draft"))
	assert.Equal(t, []string{"completed", "terminated", "cancelled"}, graph.LegalNextStates("executing"))
	assert.ElementsMatch(t, []string{"completed", "terminated", "cancelled"}, graph.TerminalStates())

	assert.True(t, registry.CanTransition("CONTRACT", "draft", "pending_review"))
	assert.False(t, registry.CanTransition("CONTRACT", "pending_review", "executing"))
	assert.False(t, registry.CanTransition("CONTRACT", "effective", "cancelled"))
}

func TestSelfTransitionIsNotSpecialCased(t *testing.T) {
	registry := testRegistry(t)
	for _, graph := range registry.Families() {
		for _, state := range graph.States() {
			assert.False(t, graph.CanTransition(state, state), "%s %s", graph.Family(), state)
		}
	}
}

func TestTerminalStatesHaveNoTargets(t *testing.T) {
	registry := testRegistry(t)
	graph, err := registry.Graph("OPPORTUNITY")
	require.NoError(t, err)

	for _, state := range []string{"won", "lost", "cancelled"} {
		assert.True(t, graph.IsTerminal(state))
		assert.Empty(t, graph.LegalNextStates(state))
		for _, target := range graph.States() {
			assert.False(t, graph.CanTransition(state, target))
		}
	}
}

func TestCanTransitionIsStable(t *testing.T) {
	registry := testRegistry(t)
	first := registry.CanTransition("OPPORTUNITY", "negotiation", "won")
	for i := 0; i < 100; i++ {
		require.Equal(t, first, registry.CanTransition("OPPORTUNITY", "negotiation", "won"))
		require.False(t, registry.CanTransition("OPPORTUNITY", "won", "negotiation"))
	}
}

func TestLegalNextStatesReturnsCopy(t *testing.T) {
	registry := testRegistry(t)
	next, err := registry.LegalNextStates("CONTRACT", "draft")
	require.NoError(t, err)
	next[0] = "signed"

	again, err := registry.LegalNextStates("CONTRACT", "draft")
	require.NoError(t, err)
	assert.Equal(t, []string{"pending_review", "cancelled"}, again)
}

func TestValidatorReportsIllegalTransition(t *testing.T) {
	validator := TransitionValidator{Registry: testRegistry(t)}

	require.NoError(t, validator.Validate("CONTRACT", "draft", "pending_review"))

	err := validator.Validate("CONTRACT", "pending_review", "executing")
	require.ErrorIs(t, err, domainerrors.ErrIllegalTransition)
	var illegal *domainerrors.IllegalTransitionError
	require.True(t, errors.As(err, &illegal))
	assert.Equal(t, "pending_review", illegal.From)
	assert.Equal(t, "executing", illegal.To)

	err = validator.Validate("CONTRACT", "no_such_state", "draft")
	require.ErrorIs(t, err, domainerrors.ErrIllegalTransition)

	err = validator.Validate("INVOICE", "draft", "paid")
	require.ErrorIs(t, err, domainerrors.ErrUnknownFamily)
}

func TestRegistryRejectsBrokenDefinitions(t *testing.T) {
	cases := map[string][]entities.FamilyDefinition{
		"missing prefix": {{Key: "X", InitialState: "a", States: []entities.StateDefinition{{Name: "a"}}}},
		"unknown initial": {{Key: "X", Prefix: "X", InitialState: "b", States: []entities.StateDefinition{{Name: "a"}}}},
		"dangling edge": {{Key: "X", Prefix: "X", InitialState: "a", States: []entities.StateDefinition{
			{Name: "a", Next: []string{"b"}},
		}}},
		"unreachable state": {{Key: "X", Prefix: "X", InitialState: "a", States: []entities.StateDefinition{
			{Name: "a"},
			{Name: "b"},
		}}},
		"duplicate state": {{Key: "X", Prefix: "X", InitialState: "a", States: []entities.StateDefinition{
			{Name: "a"},
			{Name: "a"},
		}}},
		"duplicate family": {contractDefinition(), contractDefinition()},
		"duplicate prefix": {
			contractDefinition(),
			{Key: "OTHER", Prefix: "VIH-CON", InitialState: "a", States: []entities.StateDefinition{{Name: "a"}}},
		},
	}

	for name, definitions := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(definitions)
			require.ErrorIs(t, err, domainerrors.ErrInvalidFamilyDefinition)
		})
	}
}

func TestFormatSequenceID(t *testing.T) {
	assert.Equal(t, "VIH-CON-2025-0001", FormatSequenceID("VIH-CON", 2025, 1))
	assert.Equal(t, "ADM-PUR-2025-0042", FormatSequenceID("ADM-PUR", 2025, 42))
	assert.Equal(t, "OPP-2026-9999", FormatSequenceID("OPP", 2026, 9999))
	assert.True(t, ValidSequenceYear(2025))
	assert.False(t, ValidSequenceYear(0))
	assert.False(t, ValidSequenceYear(10000))
}
