package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ledgersync/internal/merge"
)

// Snapshot is the golden form of a scenario run.
type Snapshot struct {
	Scenario string         `json:"scenario"`
	Reports  []reportDigest `json:"reports"`
	Profiles []ProfileState `json:"profiles"`
}

// reportDigest drops the fields of a report that repeat the scenario.
type reportDigest struct {
	Strategy        string        `json:"strategy"`
	TargetProfileID string        `json:"targetProfileId"`
	Added           merge.Counts  `json:"added"`
	Updated         merge.Updated `json:"updated"`
	Skipped         merge.Counts  `json:"skipped"`
	Removed         merge.Counts  `json:"removed"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// NewSnapshot builds the golden form of a result.
func NewSnapshot(name string, r *Result) Snapshot {
	s := Snapshot{Scenario: name, Reports: make([]reportDigest, 0, len(r.Reports)), Profiles: r.Profiles}
	for _, rep := range r.Reports {
		s.Reports = append(s.Reports, reportDigest{
			Strategy:        string(rep.Strategy),
			TargetProfileID: rep.TargetProfileID,
			Added:           rep.Added,
			Updated:         rep.Updated,
			Skipped:         rep.Skipped,
			Removed:         rep.Removed,
			Warnings:        rep.Warnings,
		})
	}
	return s
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := json.MarshalIndent(NewSnapshot(name, result), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
