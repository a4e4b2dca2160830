// Package version parses and orders the version strings used to name
// analyser builds, e.g. "1.45" or "2.13.0".
package version

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a parsed build version. The zero value is invalid.
type Version struct {
	raw   string
	canon string // "v"-prefixed form understood by semver
}

// Parse parses a dotted numeric version. Missing minor or patch
// components are treated as zero, so "1.45" equals "1.45.0".
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	canon := "v" + strings.TrimPrefix(s, "v")
	if !semver.IsValid(canon) {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{raw: s, canon: canon}, nil
}

// MustParse is like Parse but panics on error. For constant tables.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as it was given to Parse.
func (v Version) String() string {
	return v.raw
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return v.canon == ""
}

// Compare returns -1, 0 or +1 depending on whether v precedes, equals or
// follows o.
func (v Version) Compare(o Version) int {
	return semver.Compare(v.canon, o.canon)
}

// AtLeast reports whether v >= min.
func (v Version) AtLeast(min Version) bool {
	return v.Compare(min) >= 0
}

// Sort orders version names ascending by precedence. Names that compare
// equal keep their relative order. It fails on the first name that is
// not a version.
func Sort(names []string) ([]string, error) {
	type item struct {
		name string
		v    Version
	}
	items := make([]item, 0, len(names))
	for _, n := range names {
		v, err := Parse(n)
		if err != nil {
			return nil, err
		}
		items = append(items, item{name: n, v: v})
	}
	slices.SortStableFunc(items, func(a, b item) int {
		return a.v.Compare(b.v)
	})

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.name
	}
	return out, nil
}

// Sanitize turns the text printed by "cppcheck --version" into a bare
// version: "Cppcheck 2.14 dev" becomes "2.14".
func Sanitize(report string) string {
	s := strings.TrimSpace(report)
	s = strings.ReplaceAll(s, "Cppcheck ", "")
	s = strings.ReplaceAll(s, " dev", "")
	return s
}
