// Package workflow runs a triage over a directory of analyser builds. It
// is consumed by both the CLI and the MCP server.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/deixis/triage/internal/command"
	"github.com/deixis/triage/internal/config"
	"github.com/deixis/triage/internal/history"
	"github.com/deixis/triage/internal/report"
	"github.com/deixis/triage/internal/runner"
	"github.com/deixis/triage/internal/version"
	"github.com/deixis/triage/internal/versions"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrCompactRequiresCompare is returned for a compact request that does
// not compare.
var ErrCompactRequiresCompare = errors.New("--compact requires --compare")

// ErrInvalidTimeout is returned for a negative per-build timeout.
var ErrInvalidTimeout = errors.New("timeout must be a positive number of seconds")

// Engine holds shared dependencies for triage runs.
type Engine struct {
	Config *config.Config
	Logger *zap.Logger
	Out    io.Writer // transcript destination; nil discards it
}

// Request describes one triage run.
type Request struct {
	Dir   string // directory holding one folder per build
	Input string // file passed to every build
	Repo  string // git repository, required when folders are commit hashes

	Compare bool // report only changes between consecutive builds
	Compact bool // with Compare, omit labels of unchanged builds
	Diff    bool // with Compare, print a unified diff at each change

	Debug         bool
	DebugWarnings bool
	CheckLibrary  bool

	Timeout time.Duration // per build; zero uses the configured timeout
}

// Validate rejects invalid flag combinations.
func (r Request) Validate() error {
	if r.Compact && !r.Compare {
		return ErrCompactRequiresCompare
	}
	if r.Timeout < 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidTimeout, r.Timeout)
	}
	return nil
}

// Triage runs every build under req.Dir against req.Input in order and
// writes the transcript to e.Out. The returned report holds every
// build's raw result.
func (e *Engine) Triage(ctx context.Context, req Request) (*report.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg := e.config()
	log := e.logger()

	builder, err := command.NewBuilder(cfg.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	set, err := versions.List(ctx, req.Dir, versions.Options{
		Exclude: cfg.ExcludeDirs(),
		Orderer: e.orderer(req.Repo),
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = cfg.Timeout()
	}
	run := &runner.Runner{
		Workspace: set.Root,
		Timeout:   timeout,
		MaxOutput: cfg.MaxOutputBytes(),
	}

	kind := report.Dump
	if req.Compare {
		kind = report.Compare
	}
	rep := &report.Report{
		ID:    uuid.New().String(),
		Kind:  kind,
		Dir:   set.Root,
		Input: req.Input,
		Mode:  string(set.Mode),
	}
	opts := command.Options{
		Compare:       req.Compare,
		Debug:         req.Debug,
		DebugWarnings: req.DebugWarnings,
		CheckLibrary:  req.CheckLibrary,
	}
	noise := cfg.NoisePrefixes()

	log.Debug("analyzing", zap.String("file", req.Input))

	var base Baseline
	for _, entry := range set.Entries {
		exe := filepath.Join(entry.Dir, cfg.ExecutableName())

		v, err := e.runningVersion(ctx, run, set.Mode, entry, exe)
		if err != nil {
			return nil, err
		}
		label := entry.Name
		if set.Mode == versions.Hash {
			label = fmt.Sprintf("%s (%s)", entry.Name, v)
		}

		argv := builder.Build(v, exe, req.Input, opts)
		log.Debug("running",
			zap.String("version", label),
			zap.Any("features", builder.Enabled(v, opts)),
			zap.Strings("argv", argv))

		res, err := e.execute(ctx, run, argv, entry)
		if err != nil {
			return nil, err
		}
		vr := report.VersionResult{
			RunID:    res.RunID,
			Entry:    entry.Name,
			Version:  v.String(),
			Label:    label,
			Args:     argv,
			ExitCode: res.ExitCode,
			Output:   res.Output(),
			TimedOut: res.TimedOut,
		}

		if !req.Compare {
			e.println(label)
			e.println(vr.ExitCode)
			e.println(vr.Output)
			rep.Versions = append(rep.Versions, vr)
			continue
		}

		cur := Baseline{Label: label, ExitCode: vr.ExitCode, Output: Normalize(vr.Output, set.Mode, noise)}
		next, step := Advance(base, cur, req.Compact)
		if step.ExitChanged {
			log.Debug("exitcode changed", zap.String("version", label))
		}
		if step.OutputChanged {
			log.Debug("output changed", zap.String("version", label))
		}
		if step.Changed() {
			e.println(step.Previous.ExitCode)
			e.println(step.Previous.Output)
			if req.Diff {
				e.print(unifiedDiff(step.Previous, next))
			}
		}
		if step.PrintLabel {
			e.println(label)
		}
		vr.Changed = step.Changed()
		rep.Versions = append(rep.Versions, vr)
		base = next
	}

	if req.Compare {
		e.println(base.ExitCode)
		e.println(base.Output)
	}
	log.Debug("done", zap.Int("versions", len(rep.Versions)))
	return rep, nil
}

// runningVersion returns the version used to gate flags. Builds named by
// commit hash are asked for their version.
func (e *Engine) runningVersion(ctx context.Context, run *runner.Runner, mode versions.Mode, entry versions.Entry, exe string) (version.Version, error) {
	if mode == versions.Semver {
		return version.Parse(entry.Name)
	}
	res, err := run.Run(ctx, []string{exe, "--version"}, entry.Dir)
	if err != nil {
		return version.Version{}, fmt.Errorf("querying version of %s: %w", entry.Name, err)
	}
	reported := version.Sanitize(string(res.Stdout))
	v, err := version.Parse(reported)
	if err != nil {
		return version.Version{}, fmt.Errorf("%s reported an unrecognised version: %w", entry.Name, err)
	}
	return v, nil
}

// execute runs one build. A build that cannot be started is reported like
// any other result, with exit code -1 and the error as output.
func (e *Engine) execute(ctx context.Context, run *runner.Runner, argv []string, entry versions.Entry) (*runner.Result, error) {
	res, err := run.Run(ctx, argv, entry.Dir)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	e.logger().Warn("build could not be started", zap.String("entry", entry.Name), zap.Error(err))
	return &runner.Result{
		RunID:    uuid.New().String(),
		ExitCode: -1,
		Stdout:   []byte(err.Error()),
	}, nil
}

// orderer returns the git history of repo, or nil without a repository.
func (e *Engine) orderer(repo string) versions.Orderer {
	if repo == "" {
		return nil
	}
	cfg := e.config()
	e.logger().Debug("using git repository to sort commit hashes", zap.String("repo", repo))
	return &history.Git{
		Runner: &runner.Runner{
			Workspace: repo,
			Timeout:   cfg.GitTimeout(),
			MaxOutput: cfg.MaxOutputBytes(),
		},
		Binary: cfg.GitBinary(),
	}
}

func (e *Engine) config() *config.Config {
	if e.Config == nil {
		return &config.Config{}
	}
	return e.Config
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) println(v any) {
	if e.Out != nil {
		fmt.Fprintln(e.Out, v)
	}
}

func (e *Engine) print(s string) {
	if e.Out != nil && s != "" {
		fmt.Fprint(e.Out, s)
	}
}
