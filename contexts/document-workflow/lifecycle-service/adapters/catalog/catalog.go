package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"vihadmin/contexts/document-workflow/lifecycle-service/domain/entities"
	"vihadmin/contexts/document-workflow/lifecycle-service/domain/statemachine"

	"gopkg.in/yaml.v3"
)

//go:embed families.yaml
var defaultCatalog []byte

type catalogFile struct {
	Families []familyDocument `yaml:"families"`
}

type familyDocument struct {
	Key          string          `yaml:"key"`
	Prefix       string          `yaml:"prefix"`
	Label        string          `yaml:"label"`
	InitialState string          `yaml:"initial_state"`
	States       []stateDocument `yaml:"states"`
}

type stateDocument struct {
	Name  string   `yaml:"name"`
	Label string   `yaml:"label"`
	Next  []string `yaml:"next"`
}

// Parse decodes a catalog document. Unknown keys are rejected so that a typo in
// a state list cannot silently drop an edge.
func Parse(data []byte) ([]entities.FamilyDefinition, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file catalogFile
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode family catalog: %w", err)
	}

	definitions := make([]entities.FamilyDefinition, 0, len(file.Families))
	for _, family := range file.Families {
		def := entities.FamilyDefinition{
			Key:          strings.TrimSpace(family.Key),
			Prefix:       strings.TrimSpace(family.Prefix),
			Label:        strings.TrimSpace(family.Label),
			InitialState: strings.TrimSpace(family.InitialState),
			States:       make([]entities.StateDefinition, 0, len(family.States)),
		}
		for _, state := range family.States {
			def.States = append(def.States, entities.StateDefinition{
				Name:  strings.TrimSpace(state.Name),
				Label: strings.TrimSpace(state.Label),
				Next:  append([]string(nil), state.Next...),
			})
		}
		definitions = append(definitions, def)
	}
	return definitions, nil
}

// Default returns the definitions compiled into the binary.
func Default() ([]entities.FamilyDefinition, error) {
	return Parse(defaultCatalog)
}

// LoadRegistry builds the registry from path, or from the embedded catalog when
// path is empty.
func LoadRegistry(path string) (*statemachine.Registry, error) {
	data := defaultCatalog
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read family catalog %s: %w", path, err)
		}
		data = raw
	}
	definitions, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return statemachine.NewRegistry(definitions)
}

// MustDefaultRegistry panics when the embedded catalog is invalid, which the
// catalog tests rule out.
func MustDefaultRegistry() *statemachine.Registry {
	registry, err := LoadRegistry("")
	if err != nil {
		panic(err)
	}
	return registry
}
