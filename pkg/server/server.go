// Package server exposes MemoryManager's eleven operations as MCP tools
// over the modelcontextprotocol go-sdk. The transport is an
// external collaborator to the core: handlers translate wire params into
// facade calls and fold every error into the {success:false, error}
// envelope the facade boundary promises — unknown-tool (-32601)
// and framing errors stay the SDK's concern.
package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/JinHo-von-Choi/memento-mcp/pkg/memory"
)

// Version is reported in the MCP handshake.
const Version = "1.0.0"

// Server wires the facade to an MCP tool server.
type Server struct {
	manager *memory.Manager
	mcp     *mcp.Server
}

// New constructs the Server and registers the eleven tools.
func New(manager *memory.Manager) *Server {
	s := &Server{
		manager: manager,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "memento-mcp",
			Version: Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over the given transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "remember",
		Description: "Store an atomic knowledge fragment (PII-redacted, deduplicated, indexed).",
	}, s.handleRemember)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recall",
		Description: "Retrieve fragments through the keyword/indexed/semantic cascade.",
	}, s.handleRecall)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "forget",
		Description: "Delete fragments by id or topic; permanent fragments require force.",
	}, s.handleForget)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "link",
		Description: "Create a typed directed edge between two fragments.",
	}, s.handleLink)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "amend",
		Description: "Update a fragment, archiving the previous version.",
	}, s.handleAmend)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reflect",
		Description: "Project a session recap into typed, auto-linked fragments.",
	}, s.handleReflect)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "context",
		Description: "Assemble session-bootstrap core and working memory within a token budget.",
	}, s.handleContext)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "tool_feedback",
		Description: "Record whether a tool's output was relevant and sufficient.",
	}, s.handleToolFeedback)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_stats",
		Description: "Report aggregate fragment, link, and version counts.",
	}, s.handleStats)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_consolidate",
		Description: "Run the maintenance pipeline and report per-stage counters.",
	}, s.handleConsolidate)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "graph_explore",
		Description: "Walk the cause/resolution chain from a starting fragment.",
	}, s.handleGraphExplore)
}
