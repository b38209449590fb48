package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/ledgersync/internal/backup"
	"github.com/roach88/ledgersync/internal/ledger"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against the ledger in st.
// Returns one message per failed assertion.
func EvaluateAssertions(ctx context.Context, st ledger.Store, now time.Time, assertions []Assertion) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertCount:
			err = assertCount(ctx, st.Scope(), now, a)
		case AssertRecord:
			err = assertRecord(ctx, st.Scope(), now, a)
		case AssertIntegrity:
			err = assertIntegrity(ctx, st.Scope(), a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errors = append(errors, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errors
}

func assertCount(ctx context.Context, sc ledger.Scope, now time.Time, a Assertion) error {
	records, err := loadRecords(ctx, sc, now, a.Profile, a.Entity)
	if err != nil {
		return err
	}
	if len(records) != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d %s in profile %s", a.Count, a.Entity, a.Profile),
			Actual:   fmt.Sprintf("%d", len(records)),
		}
	}
	return nil
}

func assertRecord(ctx context.Context, sc ledger.Scope, now time.Time, a Assertion) error {
	records, err := loadRecords(ctx, sc, now, a.Profile, a.Entity)
	if err != nil {
		return err
	}

	var selected []map[string]any
	for _, rec := range records {
		if matchFields(rec, a.Where) {
			selected = append(selected, rec)
		}
	}
	if len(selected) == 0 {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s in profile %s where %s", a.Entity, a.Profile, formatFields(a.Where)),
			Actual:   "no record found",
		}
	}
	for _, rec := range selected {
		if matchFields(rec, a.Expect) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertRecord,
		Expected: fmt.Sprintf("%s where %s to have %s", a.Entity, formatFields(a.Where), formatFields(a.Expect)),
		Actual:   formatFields(selected[0]),
	}
}

func assertIntegrity(ctx context.Context, sc ledger.Scope, a Assertion) error {
	violations, err := ledger.CheckIntegrity(ctx, sc, a.Profile)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.String()
	}
	return &AssertionError{
		Type:     AssertIntegrity,
		Expected: fmt.Sprintf("no dangling references in profile %s", a.Profile),
		Actual:   strings.Join(msgs, "; "),
	}
}

// loadRecords returns the profile's records of one entity type in their
// document form, so assertions use the same field names as backups.
func loadRecords(ctx context.Context, sc ledger.Scope, now time.Time, profileID, entity string) ([]map[string]any, error) {
	doc, err := backup.Export(ctx, sc, profileID, now)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc.Entities)
	if err != nil {
		return nil, err
	}
	var all map[string][]map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}
	return all[entity], nil
}

// matchFields reports whether actual carries every expected field (subset
// match). Scalars compare by their printed form, so 500 matches "500".
func matchFields(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return strings.Join(parts, ", ")
}
