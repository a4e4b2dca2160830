package workflow

import (
	"strings"

	"github.com/deixis/triage/internal/versions"
	"github.com/pmezard/go-difflib/difflib"
)

// Baseline is the most recent result of a compare run. It is carried
// from one version to the next; the zero value means nothing ran yet.
type Baseline struct {
	Set      bool
	Label    string
	ExitCode int
	Output   string // normalised
}

// Step describes what a compare run reports for one version.
type Step struct {
	First         bool
	ExitChanged   bool
	OutputChanged bool
	PrintLabel    bool
	// Previous is the result the version is compared against; it is what
	// gets printed ahead of the label when behaviour changed.
	Previous Baseline
}

// Changed reports whether exit code or output differ from the previous
// version.
func (s Step) Changed() bool {
	return s.ExitChanged || s.OutputChanged
}

// Advance folds cur into the comparison. It returns the baseline for the
// next version and what to report for cur. In compact mode labels of
// unchanged versions are suppressed; the first label is always printed.
func Advance(prev, cur Baseline, compact bool) (Baseline, Step) {
	cur.Set = true
	if !prev.Set {
		return cur, Step{First: true, PrintLabel: true}
	}
	s := Step{
		Previous:      prev,
		ExitChanged:   prev.ExitCode != cur.ExitCode,
		OutputChanged: prev.Output != cur.Output,
	}
	s.PrintLabel = !compact || s.Changed()
	return cur, s
}

// Normalize prepares output for comparison. Builds named by version have
// lines starting with any of the noise prefixes removed; the result is
// trimmed of surrounding whitespace.
func Normalize(out string, mode versions.Mode, noise []string) string {
	if mode == versions.Semver && len(noise) > 0 {
		out = dropLines(out, noise)
	}
	return strings.TrimSpace(out)
}

func dropLines(out string, prefixes []string) string {
	var b strings.Builder
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if hasAnyPrefix(line, prefixes) {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// unifiedDiff renders the change between two normalised outputs. It
// returns "" when the outputs are equal.
func unifiedDiff(from, to Baseline) string {
	if from.Output == to.Output {
		return ""
	}
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(from.Output + "\n"),
		B:        difflib.SplitLines(to.Output + "\n"),
		FromFile: from.Label,
		ToFile:   to.Label,
		Context:  2,
	}
	s, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		return ""
	}
	return s
}
