package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/triage/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID   string `json:"run_id" jsonschema:"the run ID from a triage_run result"`
	Version string `json:"version" jsonschema:"the build's version or directory name (e.g. 1.61 or a commit hash)"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if params.Version == "" {
		return errorResult("version is required")
	}

	rep, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}
	v, err := rep.Find(params.Version)
	if err != nil {
		return errorResult(err.Error())
	}

	return textResult(formatInspect(rep, v))
}

func formatInspect(rep *report.Report, v *report.VersionResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", rep.ID, rep.Kind)
	fmt.Fprintf(&b, "Build: %s\n", v.Label)
	if v.RunID != "" {
		fmt.Fprintf(&b, "Process: %s\n", v.RunID)
	}
	fmt.Fprintf(&b, "Exit code: %d\n", v.ExitCode)
	if v.TimedOut {
		fmt.Fprintln(&b, "Timed out: yes")
	}
	if v.Changed {
		fmt.Fprintln(&b, "Changed: yes")
	}
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(v.Args, " "))
	fmt.Fprintln(&b)
	fmt.Fprint(&b, v.Output)

	return b.String()
}
