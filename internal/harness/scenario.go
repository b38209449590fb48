package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgersync/internal/merge"
)

// Scenario describes one import run and its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Target is a backup document whose records are loaded verbatim, ids
	// included, before the first step. Optional.
	Target string `yaml:"target,omitempty"`

	// Steps are imports applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions check the ledger after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step imports one document.
type Step struct {
	// Import is the path of the backup document.
	Import string `yaml:"import"`

	// Strategy is clone, replace or merge.
	Strategy merge.Strategy `yaml:"strategy"`

	// Profile is the target profile for replace and merge.
	Profile string `yaml:"profile,omitempty"`

	// Expect checks the step's report. Only the given sections are compared.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect lists report sections to compare exactly.
type StepExpect struct {
	Added   *merge.Counts  `yaml:"added,omitempty"`
	Updated *merge.Updated `yaml:"updated,omitempty"`
	Skipped *merge.Counts  `yaml:"skipped,omitempty"`
	Removed *merge.Counts  `yaml:"removed,omitempty"`
}

// Assertion checks the final ledger.
type Assertion struct {
	// Type is count, record or integrity.
	Type string `yaml:"type"`

	// Entity is the document key of the records to check, e.g.
	// "transactions" or "debtPayments". Used by count and record.
	Entity string `yaml:"entity,omitempty"`

	// Profile is the profile the records belong to.
	Profile string `yaml:"profile"`

	// Count is the expected number of records (count).
	Count int `yaml:"count,omitempty"`

	// Where selects records by field (record). All fields must match.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect lists fields the selected record must carry (record).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCount     = "count"
	AssertRecord    = "record"
	AssertIntegrity = "integrity"
)

var entityNames = map[string]bool{
	"profiles": true, "categories": true, "transactions": true, "budgets": true,
	"payments": true, "debts": true, "debtPayments": true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and document paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	if scenario.Target != "" {
		scenario.Target = resolve(base, scenario.Target)
	}
	for i := range scenario.Steps {
		scenario.Steps[i].Import = resolve(base, scenario.Steps[i].Import)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Target != "" {
		if _, err := os.Stat(s.Target); err != nil {
			return fmt.Errorf("target document not found: %s", s.Target)
		}
	}

	for i, step := range s.Steps {
		if step.Import == "" {
			return fmt.Errorf("steps[%d]: import is required", i)
		}
		if _, err := os.Stat(step.Import); err != nil {
			return fmt.Errorf("steps[%d]: document not found: %s", i, step.Import)
		}
		if _, err := merge.ParseStrategy(string(step.Strategy)); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Strategy != merge.StrategyClone && step.Profile == "" {
			return fmt.Errorf("steps[%d]: profile is required for %s", i, step.Strategy)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Profile == "" {
		return fmt.Errorf("assertions[%d]: profile is required", index)
	}

	switch a.Type {
	case AssertCount:
		if !entityNames[a.Entity] {
			return fmt.Errorf("assertions[%d]: unknown entity %q", index, a.Entity)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertRecord:
		if !entityNames[a.Entity] {
			return fmt.Errorf("assertions[%d]: unknown entity %q", index, a.Entity)
		}
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	case AssertIntegrity:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
