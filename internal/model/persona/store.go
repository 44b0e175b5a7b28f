package persona

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store exposes persona retrieval for HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// catalogue is the on-disk layout of a persona file.
type catalogue struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads a YAML persona catalogue:
//
//	personas:
//	  - id: concierge
//	    name: Concierge
//	    opening_line: Hi! Where would you like to go?
func LoadFile(path string) ([]Persona, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML persona catalogue and validates it.
func Parse(raw []byte) ([]Persona, error) {
	var cat catalogue
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("decode persona file: %w", err)
	}
	if len(cat.Personas) == 0 {
		return nil, errors.New("persona file defines no personas")
	}

	seen := make(map[string]struct{}, len(cat.Personas))
	for i, p := range cat.Personas {
		if p.ID == "" {
			return nil, fmt.Errorf("persona %d: id is required", i)
		}
		if p.OpeningLine == "" {
			return nil, fmt.Errorf("persona %q: opening_line is required", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("persona %q: duplicate id", p.ID)
		}
		seen[p.ID] = struct{}{}
		if cat.Personas[i].Name == "" {
			cat.Personas[i].Name = p.ID
		}
	}
	return cat.Personas, nil
}
