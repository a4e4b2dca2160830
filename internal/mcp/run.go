package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/triage/internal/config"
	"github.com/deixis/triage/internal/report"
	"github.com/deixis/triage/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type runParams struct {
	Dir            string `json:"dir" jsonschema:"directory holding one subdirectory per analyser build"`
	File           string `json:"file" jsonschema:"the file to analyse with every build"`
	Repo           string `json:"repo,omitempty" jsonschema:"git repository used to order builds named by commit hash"`
	Dump           bool   `json:"dump,omitempty" jsonschema:"report every build's result instead of only the changes"`
	Compact        bool   `json:"compact,omitempty" jsonschema:"only list builds at which the result changed"`
	Diff           bool   `json:"diff,omitempty" jsonschema:"include a unified diff of the output at each change"`
	Debug          bool   `json:"debug,omitempty" jsonschema:"pass --debug to builds that support it"`
	DebugWarnings  bool   `json:"debug_warnings,omitempty" jsonschema:"pass --debug-warnings to builds that support it"`
	CheckLibrary   bool   `json:"check_library,omitempty" jsonschema:"pass --check-library to builds that support it"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"seconds each build may run before it is killed (default from .triage or 2)"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.Dir == "" {
		return errorResult("dir is required")
	}
	if params.File == "" {
		return errorResult("file is required")
	}
	dir := h.resolve(params.Dir)

	cfg, err := config.Load(dir)
	if err != nil {
		return errorResult(fmt.Sprintf("loading config: %v", err))
	}

	var out strings.Builder
	eng := &workflow.Engine{Config: cfg, Logger: h.logger, Out: &out}
	rep, err := eng.Triage(ctx, workflow.Request{
		Dir:           dir,
		Input:         params.File,
		Repo:          h.resolve(params.Repo),
		Compare:       !params.Dump,
		Compact:       params.Compact && !params.Dump,
		Diff:          params.Diff,
		Debug:         params.Debug,
		DebugWarnings: params.DebugWarnings,
		CheckLibrary:  params.CheckLibrary,
		Timeout:       time.Duration(params.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("triage failed: %v", err))
	}

	if err := h.store.Save(rep); err != nil {
		h.logger.Warn("saving run", zap.String("run_id", rep.ID), zap.Error(err))
	}

	return textResult(formatRun(rep, out.String()))
}

func formatRun(rep *report.Report, transcript string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Triage: %d builds (%s), %d changes\n", len(rep.Versions), rep.Mode, len(rep.Transitions()))
	fmt.Fprintf(&b, "Run: %s\n", rep.ID)
	fmt.Fprintln(&b)
	fmt.Fprint(&b, transcript)
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with triage_inspect(run_id=%q, version=\"<version>\").\n", rep.ID)

	return b.String()
}
