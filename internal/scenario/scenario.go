// Package scenario loads test-case definitions from YAML files: a persona
// template, the goals and constraints to check, and per-test overrides.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/metalagman/goalpilot/internal/model"
)

// Overrides are per-test knobs that win over the global configuration.
// Zero values mean "use the global default".
type Overrides struct {
	MaxTurns            int    `yaml:"max_turns,omitempty"`
	DelayBetweenTurnsMs int    `yaml:"delay_between_turns_ms,omitempty"`
	ContinueOnError     *bool  `yaml:"continue_on_error,omitempty"`
	Seed                *int64 `yaml:"seed,omitempty"`
}

// Scenario is one test case as authored on disk.
type Scenario struct {
	Name           string                `yaml:"name"`
	Description    string                `yaml:"description,omitempty"`
	InitialMessage string                `yaml:"initial_message,omitempty"`
	Persona        model.PersonaTemplate `yaml:"persona"`
	Goals          []model.Goal          `yaml:"goals"`
	Constraints    []model.Constraint    `yaml:"constraints,omitempty"`
	Overrides      Overrides             `yaml:"overrides,omitempty"`
}

// Load reads and validates one scenario file.
func Load(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", filepath.Base(path), err)
	}
	if err := s.validate(); err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// LoadDir loads every *.yml and *.yaml file in dir, sorted by file name.
func LoadDir(dir string) ([]Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yml", ".yaml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (s Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Goals) == 0 {
		return fmt.Errorf("at least one goal is required")
	}
	seen := make(map[string]bool, len(s.Goals))
	for i, g := range s.Goals {
		if g.ID == "" {
			return fmt.Errorf("goal %d: id is required", i)
		}
		if seen[g.ID] {
			return fmt.Errorf("goal id %q duplicated", g.ID)
		}
		seen[g.ID] = true
		switch g.Type {
		case model.GoalDataCollection:
			if len(g.RequiredFields) == 0 {
				return fmt.Errorf("goal %q: data_collection needs required_fields", g.ID)
			}
		case model.GoalBookingConfirmed, model.GoalTransferInitiated,
			model.GoalConversationEnded, model.GoalErrorHandled:
		default:
			return fmt.Errorf("goal %q: unknown type %q", g.ID, g.Type)
		}
	}
	for i, c := range s.Constraints {
		switch c.Type {
		case model.ConstraintMaxTurns:
			if c.MaxTurns <= 0 {
				return fmt.Errorf("constraint %d: max_turns must be positive", i)
			}
		case model.ConstraintMustHappen, model.ConstraintMustNotHappen:
			if c.Behavior == "" {
				return fmt.Errorf("constraint %d: behavior is required", i)
			}
		default:
			return fmt.Errorf("constraint %d: unknown type %q", i, c.Type)
		}
	}
	return nil
}
