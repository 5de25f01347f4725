package data

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Archetype holds static defaults for an entity kind loaded from YAML.
type Archetype struct {
	Kind           string  `yaml:"kind"`
	Name           string  `yaml:"name"`
	MaxHP          int32   `yaml:"max_hp"`
	SpawnY         int64   `yaml:"spawn_y"` // world units above ground
	InterestRadius float64 `yaml:"interest_radius,omitempty"` // 0 = use server default
}

type archetypeFile struct {
	Archetypes []Archetype `yaml:"archetypes"`
}

// ArchetypeTable holds all entity archetypes indexed by kind.
type ArchetypeTable struct {
	byKind map[string]*Archetype
}

// LoadArchetypeTable loads archetypes from a YAML file. Duplicate kinds are a
// data bug and fail the load.
func LoadArchetypeTable(path string) (*ArchetypeTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archetypes: %w", err)
	}
	var f archetypeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse archetypes: %w", err)
	}
	t := &ArchetypeTable{byKind: make(map[string]*Archetype, len(f.Archetypes))}
	for i := range f.Archetypes {
		a := &f.Archetypes[i]
		if _, dup := t.byKind[a.Kind]; dup {
			return nil, fmt.Errorf("duplicate archetype kind %q (%s)", a.Kind, a.Name)
		}
		t.byKind[a.Kind] = a
	}
	return t, nil
}

// Get returns an archetype by kind, or nil if not found.
func (t *ArchetypeTable) Get(kind string) *Archetype {
	return t.byKind[kind]
}

// Count returns the number of loaded archetypes.
func (t *ArchetypeTable) Count() int {
	return len(t.byKind)
}

// Each visits archetypes in ascending kind order so callers that spawn from
// the table do so deterministically.
func (t *ArchetypeTable) Each(fn func(*Archetype)) {
	kinds := make([]string, 0, len(t.byKind))
	for k := range t.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fn(t.byKind[k])
	}
}
