package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pre/internal/diag"
	"github.com/roach88/pre/internal/rewrite"
)

// Snapshot is the golden-file view of a run.
type Snapshot struct {
	Scenario    string          `json:"scenario"`
	Stats       rewrite.Stats   `json:"stats"`
	Changed     []string        `json:"changed"`
	Diagnostics []diag.Resolved `json:"diagnostics"`
}

// Snapshot captures the stats, rewritten file names and diagnostics.
func (r *Result) Snapshot() Snapshot {
	s := Snapshot{
		Scenario:    r.Scenario.Name,
		Stats:       r.Stats,
		Changed:     []string{},
		Diagnostics: r.Diags.Resolve(),
	}
	for _, name := range r.Scenario.FileNames() {
		if _, ok := r.Outputs[name]; ok {
			s.Changed = append(s.Changed, name)
		}
	}
	return s
}

// RunWithGolden runs a scenario and compares its snapshot against
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()
	res, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(res.Snapshot(), "", "  ")
	if err != nil {
		return nil, err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return res, nil
}
