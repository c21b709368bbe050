package catalog

import (
	"os"
	"path/filepath"
	"testing"

	domainerrors "vihadmin/contexts/document-workflow/lifecycle-service/domain/errors"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogReproducesContractAndOpportunityGraphs(t *testing.T) {
	registry, err := LoadRegistry("")
	require.NoError(t, err)

	expected := map[string]map[string][]string{
		"CONTRACT": {
			"draft":          {"pending_review", "cancelled"},
			"pending_review": {"reviewing", "draft", "cancelled"},
			"reviewing":      {"signed", "pending_review", "cancelled"},
			"signed":         {"effective", "cancelled"},
			"effective":      {"executing", "terminated"},
			"executing":      {"completed", "terminated", "cancelled"},
			"completed":      {},
			"terminated":     {},
			"cancelled":      {},
		},
		"OPPORTUNITY": {
			"potential":             {"initial_contact", "cancelled"},
			"initial_contact":       {"requirement_confirmed", "potential", "cancelled"},
			"requirement_confirmed": {"quotation", "initial_contact", "cancelled"},
			"quotation":             {"negotiation", "requirement_confirmed", "cancelled"},
			"negotiation":           {"won", "lost", "quotation", "cancelled"},
			"won":                   {},
			"lost":                  {},
			"cancelled":             {},
		},
	}

	for family, table := range expected {
		graph, err := registry.Graph(family)
		require.NoError(t, err)
		assert.ElementsMatch(t, keys(table), graph.States(), family)
		for state, next := range table {
			assert.ElementsMatch(t, next, graph.LegalNextStates(state), "%s %s", family, state)
		}
	}
}

func TestDefaultCatalogPrefixes(t *testing.T) {
	registry, err := LoadRegistry("")
	require.NoError(t, err)

	prefixes := map[string]string{
		"CONTRACT":    "VIH-CON",
		"OPPORTUNITY": "OPP",
		"ADM-PUR":     "ADM-PUR",
		"ADM-REQ":     "ADM-REQ",
		"ADM-BOOK":    "ADM-BOOK",
		"ADM-VEH":     "ADM-VEH",
		"ADM-SEA":     "ADM-SEA",
		"ADM-TRF":     "ADM-TRF",
		"ADM-EXP":     "ADM-EXP",
		"ADM-REC":     "ADM-REC",
		"LEAVE":       "LEAVE",
		"TRAIN":       "TRAIN",
		"PERF":        "PERF",
		"BUDGET":      "BUDGET",
		"VOUCHER":     "VOUCHER",

		"LABOR-CONTRACT": "CONTRACT",
	}
	require.Len(t, registry.Families(), len(prefixes))
	for family, prefix := range prefixes {
		graph, err := registry.Graph(family)
		require.NoError(t, err)
		assert.Equal(t, prefix, graph.Prefix())
		assert.NotEmpty(t, graph.TerminalStates(), family)
	}

	contract, err := registry.Graph("CONTRACT")
	require.NoError(t, err)
	assert.Equal(t, "draft", contract.InitialState())
	opportunity, err := registry.Graph("OPPORTUNITY")
	require.NoError(t, err)
	assert.Equal(t, "potential", opportunity.InitialState())

	// The labor contract keeps the bare CONTRACT prefix; the family key differs.
	labor, err := registry.Graph("LABOR-CONTRACT")
	require.NoError(t, err)
	assert.Equal(t, "CONTRACT-2025-0003", statemachine.FormatSequenceID(labor.Prefix(), 2025, 3))
}

func TestPersonnelAndFinanceGraphs(t *testing.T) {
	registry, err := LoadRegistry("")
	require.NoError(t, err)

	expected := map[string]struct {
		initial string
		table   map[string][]string
	}{
		"LEAVE": {initial: "draft", table: map[string][]string{
			"draft":     {"pending", "cancelled"},
			"pending":   {"approved", "rejected", "cancelled"},
			"approved":  {"cancelled"},
			"rejected":  {},
			"cancelled": {},
		}},
		"TRAIN": {initial: "planned", table: map[string][]string{
			"planned":   {"ongoing", "cancelled"},
			"ongoing":   {"completed", "cancelled"},
			"completed": {},
			"cancelled": {},
		}},
		"PERF": {initial: "draft", table: map[string][]string{
			"draft":           {"self_assessment"},
			"self_assessment": {"manager_review"},
			"manager_review":  {"hr_review", "self_assessment"},
			"hr_review":       {"completed", "manager_review"},
			"completed":       {},
		}},
		"LABOR-CONTRACT": {initial: "draft", table: map[string][]string{
			"draft":      {"active"},
			"active":     {"expired", "terminated"},
			"expired":    {},
			"terminated": {},
		}},
		"BUDGET": {initial: "draft", table: map[string][]string{
			"draft":     {"approved", "cancelled"},
			"approved":  {"executing", "cancelled"},
			"executing": {"completed", "cancelled"},
			"completed": {},
			"cancelled": {},
		}},
		"VOUCHER": {initial: "draft", table: map[string][]string{
			"draft":     {"submitted"},
			"submitted": {"approved", "rejected"},
			"approved":  {"posted"},
			"rejected":  {"draft"},
			"posted":    {},
		}},
		"ADM-REC": {initial: "recorded", table: map[string][]string{
			"recorded": {},
		}},
	}

	for family, want := range expected {
		graph, err := registry.Graph(family)
		require.NoError(t, err)
		assert.Equal(t, want.initial, graph.InitialState(), family)
		assert.ElementsMatch(t, keys(want.table), graph.States(), family)
		for state, next := range want.table {
			assert.ElementsMatch(t, next, graph.LegalNextStates(state), "%s %s", family, state)
		}
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
families:
  - key: X
    prefix: X
    initial_state: a
    states:
      - {name: a, nxt: [b]}
`))
	require.Error(t, err)
}

func TestLoadRegistryFromFileValidatesGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "families.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
families:
  - key: LEAVE
    prefix: HR-LEAVE
    initial_state: draft
    states:
      - {name: draft, next: [approved]}
      - {name: approved, next: []}
      - {name: archived, next: []}
`), 0o600))

	_, err := LoadRegistry(path)
	require.ErrorIs(t, err, domainerrors.ErrInvalidFamilyDefinition)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRenderMermaid(t *testing.T) {
	registry := MustDefaultRegistry()
	g := goldie.New(t)

	for _, family := range []string{"CONTRACT", "OPPORTUNITY"} {
		graph, err := registry.Graph(family)
		require.NoError(t, err)
		g.Assert(t, familyFixture(family), []byte(RenderMermaid(graph)))
	}
}

func familyFixture(family string) string {
	switch family {
	case "CONTRACT":
		return "contract_graph"
	default:
		return "opportunity_graph"
	}
}

func keys(table map[string][]string) []string {
	items := make([]string, 0, len(table))
	for key := range table {
		items = append(items, key)
	}
	return items
}
