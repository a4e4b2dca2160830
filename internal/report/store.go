// Package report provides structured persistence and retrieval of
// triage runs. A report records every version that was executed so a
// client can drill into a single build's output after the run.
package report

import "fmt"

// Kind identifies how a run reported its results.
type Kind string

const (
	// Dump runs print every version's result.
	Dump Kind = "dump"
	// Compare runs print only the versions at which behaviour changed.
	Compare Kind = "compare"
)

// Store persists and retrieves reports.
type Store interface {
	Save(r *Report) error
	Load(id string) (*Report, error)
}

// Report holds the structured outcome of one triage run.
type Report struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	Dir      string          `json:"dir"`
	Input    string          `json:"input"`
	Mode     string          `json:"mode"` // semver or hash
	Versions []VersionResult `json:"versions"`
}

// VersionResult is the outcome of running one build.
type VersionResult struct {
	RunID    string   `json:"run_id"`  // id of the process run
	Entry    string   `json:"entry"`   // directory name
	Version  string   `json:"version"` // running version used for gating
	Label    string   `json:"label"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Output   string   `json:"output"` // raw output as captured
	TimedOut bool     `json:"timed_out,omitempty"`
	// Changed is set in compare runs when exit code or normalised output
	// differ from the previous version.
	Changed bool `json:"changed,omitempty"`
}

// Find returns the result whose label, entry or version equals name.
func (r *Report) Find(name string) (*VersionResult, error) {
	for i := range r.Versions {
		v := &r.Versions[i]
		if v.Label == name || v.Entry == name || v.Version == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("run %s has no version %q", r.ID, name)
}

// Transitions returns the results flagged as behaviour changes.
func (r *Report) Transitions() []VersionResult {
	var out []VersionResult
	for _, v := range r.Versions {
		if v.Changed {
			out = append(out, v)
		}
	}
	return out
}
