package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"attest/internal/domain"
)

// ThresholdPolicy describes the classification bands for one compliance
// category. RedDays must sit strictly below AmberDays: closer to expiration
// means more severe.
type ThresholdPolicy struct {
	AmberDays int `yaml:"amber_days"`
	RedDays   int `yaml:"red_days"`
}

// Validate enforces the band invariant. Policies are checked at load time so
// classification never runs against a broken configuration.
func (p ThresholdPolicy) Validate(category domain.Category) error {
	if p.AmberDays < 0 {
		return &domain.ConfigError{Category: category, Field: "amber_days", Reason: "must not be negative"}
	}
	if p.RedDays < 0 {
		return &domain.ConfigError{Category: category, Field: "red_days", Reason: "must not be negative"}
	}
	if p.RedDays >= p.AmberDays {
		return &domain.ConfigError{
			Category: category,
			Field:    "red_days",
			Reason:   fmt.Sprintf("must be below amber_days (%d >= %d)", p.RedDays, p.AmberDays),
		}
	}
	return nil
}

// Set maps categories to their threshold policies. Loaded once from
// configuration, never mutated at runtime.
type Set map[domain.Category]ThresholdPolicy

// Lookup returns the policy for a category.
func (s Set) Lookup(category domain.Category) (ThresholdPolicy, bool) {
	p, ok := s[category]
	return p, ok
}

type policyFile struct {
	Categories map[string]ThresholdPolicy `yaml:"categories"`
}

// Load reads a policy set from a YAML file. Unknown keys are rejected so a
// misspelled field fails loudly instead of defaulting to zero.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var pf policyFile
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("decode policy file %s: %w", path, err)
	}
	return FromMap(pf.Categories)
}

// FromMap validates and converts a raw category map into a Set.
func FromMap(raw map[string]ThresholdPolicy) (Set, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("policy file defines no categories")
	}
	set := make(Set, len(raw))
	for name, p := range raw {
		cat := domain.Category(name)
		if err := p.Validate(cat); err != nil {
			return nil, err
		}
		set[cat] = p
	}
	return set, nil
}
