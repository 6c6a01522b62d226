package entity

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Load reads and validates an entity configuration file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates an entity configuration from YAML bytes.
func Parse(data []byte) (*Set, error) {
	set := NewSet()
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to parse entity config: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Save writes the set as YAML, preserving section and group order.
func Save(set *Set, path string) error {
	data, err := Marshal(set)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write entity config: %w", err)
	}
	return nil
}

// Marshal encodes the set as YAML.
func Marshal(set *Set) ([]byte, error) {
	data, err := yaml.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity config: %w", err)
	}
	return data, nil
}

// Validate checks the set invariants: unique non-empty ids, non-empty
// variants, and compilable patterns. Patterns are compiled as a side effect
// so matching never recompiles.
func (s *Set) Validate() error {
	seen := make(map[string]bool)
	for _, kind := range Kinds {
		for _, g := range s.Groups(kind) {
			if g.ID == "" {
				return &ValidationError{Reason: fmt.Sprintf("group in section %q has empty id", kind.Section())}
			}
			if seen[g.ID] {
				return &ValidationError{ID: g.ID, Reason: "duplicate id"}
			}
			seen[g.ID] = true

			if len(g.Variants) == 0 {
				return &ValidationError{ID: g.ID, Reason: "empty variants"}
			}
			for _, v := range g.Variants {
				if v == "" {
					return &ValidationError{ID: g.ID, Reason: "empty variant string"}
				}
			}

			if g.Pattern != "" {
				re, err := regexp.Compile(g.Pattern)
				if err != nil {
					return &PatternError{ID: g.ID, Pattern: g.Pattern, Err: err}
				}
				g.re = re
			}
		}
	}
	return nil
}
