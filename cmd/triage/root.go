package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/deixis/triage"
	"github.com/deixis/triage/internal/config"
	"github.com/deixis/triage/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type rootFlags struct {
	compare       bool
	verbose       bool
	debug         bool
	debugWarnings bool
	checkLibrary  bool
	compact       bool
	diff          bool
	json          bool
	timeout       int
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "triage DIR INFILE [REPO]",
		Short: "Find the analyser build at which a result changed",
		Long: `triage runs every build in DIR (one subdirectory per build, named by version
or by commit hash) against INFILE, oldest first.

Without --compare it prints each build's name, exit code and output. With
--compare it prints the first build's name, then at each change the previous
exit code and output followed by the build that changed it, and finally the
last result. Builds named by commit hash are ordered using the git repository
REPO.

Options are read from DIR/.triage when present.`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := workflow.Request{
				Dir:           args[0],
				Input:         args[1],
				Compare:       f.compare,
				Compact:       f.compact,
				Diff:          f.diff,
				Debug:         f.debug,
				DebugWarnings: f.debugWarnings,
				CheckLibrary:  f.checkLibrary,
			}
			if len(args) == 3 {
				req.Repo = args[2]
			}
			if err := req.Validate(); err != nil {
				return err
			}

			cfg, err := config.Load(req.Dir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("timeout") {
				if f.timeout <= 0 {
					return fmt.Errorf("%w: got --timeout %d", workflow.ErrInvalidTimeout, f.timeout)
				}
				req.Timeout = time.Duration(f.timeout) * time.Second
			}

			logger, err := newLogger(f.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			eng := &workflow.Engine{Config: cfg, Logger: logger, Out: stdout}
			if f.json {
				eng.Out = nil
			}
			rep, err := eng.Triage(ctx, req)
			if err != nil {
				return err
			}

			if f.json {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&f.compare, "compare", false, "compare output and only show when changed")
	flags.BoolVar(&f.verbose, "verbose", false, "verbose output for debugging")
	flags.BoolVar(&f.debug, "debug", false, "passed through to binary if supported")
	flags.BoolVar(&f.debugWarnings, "debug-warnings", false, "passed through to binary if supported")
	flags.BoolVar(&f.checkLibrary, "check-library", false, "passed through to binary if supported")
	flags.BoolVar(&f.compact, "compact", false, "only print versions with changes with --compare")
	flags.BoolVar(&f.diff, "diff", false, "print a unified diff at each change with --compare")
	flags.BoolVar(&f.json, "json", false, "print the report as JSON instead of the transcript")
	flags.IntVar(&f.timeout, "timeout", int(config.DefaultTimeout/time.Second), "the amount of seconds to wait for the analysis to finish")

	cmd.AddCommand(newMCPCmd(), newVersionCmd(stdout))
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, triage.Version)
		},
	}
}

// newLogger returns a console logger on stderr. Debug messages are
// enabled with verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = ""
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
