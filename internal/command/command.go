// Package command builds the argument list for one analyser run. Flags
// are gated on the version that introduced them, so old builds are never
// passed options they reject.
package command

import (
	"fmt"
	"slices"

	"github.com/deixis/triage/internal/version"
)

// Feature names a gated group of analyser flags.
type Feature string

const (
	Quiet         Feature = "quiet"
	Debug         Feature = "debug"
	DebugWarnings Feature = "debug-warnings"
	CheckLibrary  Feature = "check-library"
	EnableAll     Feature = "enable-all"
	InlineSuppr   Feature = "inline-suppr"
	Suppressions  Feature = "suppressions"
	Inconclusive  Feature = "inconclusive"
)

// Gate enables Args once the running version reaches Min. A zero Min
// means the gate is open for every version.
type Gate struct {
	Feature Feature
	Min     version.Version
	Args    []string
}

// DefaultGates lists the gates in the order their flags are emitted.
var DefaultGates = []Gate{
	{Feature: Quiet, Args: []string{"-q"}},
	{Feature: Debug, Min: version.MustParse("1.45"), Args: []string{"--debug"}},
	{Feature: DebugWarnings, Min: version.MustParse("1.45"), Args: []string{"--debug-warnings"}},
	{Feature: CheckLibrary, Min: version.MustParse("1.61"), Args: []string{"--check-library"}},
	{Feature: EnableAll, Min: version.MustParse("1.39"), Args: []string{"--enable=all"}},
	{Feature: InlineSuppr, Min: version.MustParse("1.40"), Args: []string{"--inline-suppr"}},
	{Feature: Suppressions, Min: version.MustParse("1.48"), Args: []string{
		"--suppress=missingInclude",
		"--suppress=missingIncludeSystem",
		"--suppress=unmatchedSuppression",
		"--suppress=unusedFunction",
	}},
	{Feature: Inconclusive, Min: version.MustParse("1.49"), Args: []string{"--inconclusive"}},
}

// Options selects the opt-in features. Features not listed here are
// always requested.
type Options struct {
	Compare       bool // enables Quiet
	Debug         bool
	DebugWarnings bool
	CheckLibrary  bool
}

func (o Options) requested(f Feature) bool {
	switch f {
	case Quiet:
		return o.Compare
	case Debug:
		return o.Debug
	case DebugWarnings:
		return o.DebugWarnings
	case CheckLibrary:
		return o.CheckLibrary
	}
	return true
}

// Builder assembles analyser command lines from a gate table.
type Builder struct {
	gates []Gate
}

// NewBuilder returns a Builder using DefaultGates with the minimum
// versions in overrides (feature name to version) applied.
func NewBuilder(overrides map[string]string) (*Builder, error) {
	gates := slices.Clone(DefaultGates)
	for name, raw := range overrides {
		i := slices.IndexFunc(gates, func(g Gate) bool { return string(g.Feature) == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown feature %q in thresholds", name)
		}
		floor, err := version.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("threshold for %s: %w", name, err)
		}
		gates[i].Min = floor
	}
	return &Builder{gates: gates}, nil
}

// Enabled returns the features whose flags apply to v under opts.
func (b *Builder) Enabled(v version.Version, opts Options) []Feature {
	var out []Feature
	for _, g := range b.gates {
		if b.open(g, v, opts) {
			out = append(out, g.Feature)
		}
	}
	return out
}

// Build returns argv for running exe at version v against input.
func (b *Builder) Build(v version.Version, exe, input string, opts Options) []string {
	argv := []string{exe}
	for _, g := range b.gates {
		if b.open(g, v, opts) {
			argv = append(argv, g.Args...)
		}
	}
	return append(argv, input)
}

func (b *Builder) open(g Gate, v version.Version, opts Options) bool {
	if !opts.requested(g.Feature) {
		return false
	}
	return g.Min.IsZero() || v.AtLeast(g.Min)
}
