// Package history orders commit hashes by their position in a git
// repository's commit graph.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/triage/internal/runner"
)

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// SortError is returned when git rejects the ordering query.
type SortError struct {
	ExitCode int
	Stderr   string
}

func (e *SortError) Error() string {
	msg := "sorting commit hashes failed"
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Git queries a repository through the git binary. The runner's
// workspace must be the repository.
type Git struct {
	Runner CommandRunner
	Binary string // defaults to "git"
}

// TopoOrder returns hashes ordered oldest first along the repository's
// topological history. Hashes are returned in git's abbreviated form.
func (g *Git) TopoOrder(ctx context.Context, hashes []string) ([]string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	argv := []string{bin, "rev-list", "--abbrev-commit", "--topo-order", "--no-walk=sorted", "--reverse"}
	argv = append(argv, hashes...)

	res, err := g.Runner.Run(ctx, argv, "")
	if err != nil {
		return nil, fmt.Errorf("executing git: %w", err)
	}
	if res.TimedOut {
		return nil, &SortError{ExitCode: res.ExitCode, Stderr: "git rev-list timed out"}
	}
	if res.ExitCode != 0 {
		return nil, &SortError{ExitCode: res.ExitCode, Stderr: string(res.Stderr)}
	}

	var out []string
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
