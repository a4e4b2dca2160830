// Package versions enumerates the build directories under a root and
// puts them in chronological order.
package versions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/deixis/triage/internal/version"
	"go.uber.org/zap"
)

var (
	// ErrNoVersions is returned when the root holds no subdirectories.
	ErrNoVersions = errors.New("no versions found")
	// ErrRepoRequired is returned when entries are commit hashes but no
	// repository was given to order them.
	ErrRepoRequired = errors.New("git repository argument required for commit hash sorting")
	// ErrCountMismatch is returned when ordering commit hashes gained or
	// lost entries.
	ErrCountMismatch = errors.New("unexpected amount of versions after commit hash sorting")
)

// Mode identifies how entries are named and ordered.
type Mode string

const (
	// Semver entries are named by version and sorted by precedence.
	Semver Mode = "semver"
	// Hash entries are named by commit hash and sorted by history.
	Hash Mode = "hash"
)

// Entry is one build directory.
type Entry struct {
	Name string // directory name: a version or a commit hash
	Dir  string // absolute path
}

// Set is the ordered list of builds found under Root.
type Set struct {
	Root    string
	Mode    Mode
	Entries []Entry
}

// Orderer sorts commit hashes oldest first. Implemented by history.Git.
type Orderer interface {
	TopoOrder(ctx context.Context, hashes []string) ([]string, error)
}

// Options controls List.
type Options struct {
	// Exclude names directories dropped in hash mode, such as the
	// repository checkout left behind by bisect scripts.
	Exclude []string
	// Orderer is required when entries are commit hashes.
	Orderer Orderer
	Logger  *zap.Logger
}

// List returns the builds under root in chronological order.
func List(ctx context.Context, root string, opts Options) (*Set, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	names, err := subdirs(abs)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in '%s'", ErrNoVersions, root)
	}
	log.Debug("found versions", zap.Int("count", len(names)), zap.String("dir", root))

	set := &Set{Root: abs}
	if _, err := version.Parse(names[0]); err == nil {
		set.Mode = Semver
		names, err = version.Sort(names)
		if err != nil {
			return nil, fmt.Errorf("sorting versions in '%s': %w", root, err)
		}
	} else {
		log.Debug("not a version, assuming commit hashes", zap.String("entry", names[0]))
		set.Mode = Hash
		names, err = orderHashes(ctx, names, opts)
		if err != nil {
			return nil, err
		}
	}

	for _, n := range names {
		set.Entries = append(set.Entries, Entry{Name: n, Dir: filepath.Join(abs, n)})
	}
	return set, nil
}

func orderHashes(ctx context.Context, names []string, opts Options) ([]string, error) {
	if opts.Orderer == nil {
		return nil, ErrRepoRequired
	}
	names = slices.DeleteFunc(names, func(n string) bool {
		return slices.Contains(opts.Exclude, n)
	})
	sorted, err := opts.Orderer.TopoOrder(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(sorted) != len(names) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(sorted), len(names))
	}
	return sorted, nil
}

// subdirs returns the names of the directories in dir, following
// symlinks, in lexical order.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		fi, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil || !fi.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
