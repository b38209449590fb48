package merge

import (
	"fmt"
	"strings"
)

// Strategy selects how a document is applied.
type Strategy string

const (
	// StrategyClone creates a new profile and inserts everything into it.
	StrategyClone Strategy = "clone"
	// StrategyReplace empties the target profile, then inserts everything.
	StrategyReplace Strategy = "replace"
	// StrategyMerge inserts only records the target does not have yet.
	StrategyMerge Strategy = "merge"
)

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyClone, StrategyReplace, StrategyMerge:
		return st, nil
	default:
		return "", fmt.Errorf("unknown import strategy %q (want clone, replace or merge)", s)
	}
}

// Counts holds one number per entity type.
type Counts struct {
	Categories   int `json:"categories" yaml:"categories"`
	Debts        int `json:"debts" yaml:"debts"`
	Transactions int `json:"transactions" yaml:"transactions"`
	Budgets      int `json:"budgets" yaml:"budgets"`
	Payments     int `json:"payments" yaml:"payments"`
	DebtPayments int `json:"debtPayments" yaml:"debtPayments"`
}

// Total sums every type.
func (c Counts) Total() int {
	return c.Categories + c.Debts + c.Transactions + c.Budgets + c.Payments + c.DebtPayments
}

// Updated counts records changed in place. Only budgets are upserted.
type Updated struct {
	Budgets int `json:"budgets" yaml:"budgets"`
}

// Report summarizes one import run.
type Report struct {
	Strategy          Strategy `json:"strategy" yaml:"strategy"`
	SourceProfileID   string   `json:"sourceProfileId" yaml:"sourceProfileId"`
	SourceProfileName string   `json:"sourceProfileName" yaml:"sourceProfileName"`
	TargetProfileID   string   `json:"targetProfileId" yaml:"targetProfileId"`
	Added             Counts   `json:"added" yaml:"added"`
	Updated           Updated  `json:"updated" yaml:"updated"`
	Skipped           Counts   `json:"skipped" yaml:"skipped"`
	Removed           Counts   `json:"removed" yaml:"removed"`
	IgnoredProfiles   []string `json:"ignoredProfiles" yaml:"ignoredProfiles"`
	Warnings          []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
