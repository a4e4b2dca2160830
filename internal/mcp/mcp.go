// Package mcp provides the triage MCP server, registering the triage
// tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/deixis/triage"
	"github.com/deixis/triage/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	store  report.Store
	logger *zap.Logger

	mu        sync.Mutex
	workspace string // base for relative directories; updated via roots
}

// NewServer creates an MCP server with all triage tools registered.
// Relative directories in tool calls resolve against workspace until the
// client announces a root.
func NewServer(workspace string, store report.Store, logger *zap.Logger) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{
		store:     store,
		logger:    logger,
		workspace: workspace,
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "triage", Version: triage.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "triage_run",
		Description: `Run every analyser build in a directory against one input file, oldest first,
and report the builds at which the exit code or output changed.

Each subdirectory of dir holds one build, named by version (e.g. 1.45) or by commit hash.
Commit hashes need repo, a git checkout used to order them. Results are stored for
drill-down via triage_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "triage_inspect",
		Description: `Show the full raw output, exit code and command line of one build from a triage_run.

Use the run_id from the triage_run result and the build's version or directory name.`,
	}, h.inspectHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and uses the
// first file root as the base for relative directories.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}
	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	h.mu.Lock()
	h.workspace = u.Path
	h.mu.Unlock()
	h.logger.Debug("workspace from roots", zap.String("workspace", u.Path))
}

// resolve makes path absolute against the current workspace.
func (h *handler) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return filepath.Join(h.workspace, path)
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
