// Package mcp implements the Model Context Protocol server for Annai.
//
// The MCP server exposes the orchestration core to MCP-compatible AI
// agents: asking the assistant, confirming pending actions, and working
// with the memory store, plus read-only diagnostics resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/annai-ai/annai/internal/bus"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/model"
	"github.com/annai-ai/annai/internal/orchestrator"
)

// Server wraps the MCP server around the orchestrator. All calls act on
// behalf of a single fixed owner; MCP sessions carry no per-user identity.
type Server struct {
	mcpServer *mcpserver.MCPServer
	orch      *orchestrator.Orchestrator
	memories  *memory.Store
	ownerID   string
	logger    *slog.Logger
}

// New creates and configures an MCP server with all resources and tools.
func New(orch *orchestrator.Orchestrator, memories *memory.Store, ownerID string, logger *slog.Logger) *Server {
	s := &Server{
		orch:     orch,
		memories: memories,
		ownerID:  ownerID,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"annai",
		"0.1.0",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// annai://events/recent — recent orchestration events.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"annai://events/recent",
			"Recent Events",
			mcplib.WithResourceDescription("Recent orchestration lifecycle events"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleEventsRecent,
	)

	// annai://stats — operational counters for every subsystem.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"annai://stats",
			"Operational Stats",
			mcplib.WithResourceDescription("Cache, router, tool, and draft statistics"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStats,
	)
}

func (s *Server) registerTools() {
	// annai_ask — run a natural-language request through the orchestrator.
	s.mcpServer.AddTool(
		mcplib.NewTool("annai_ask",
			mcplib.WithDescription("Send a natural-language request to the assistant and get a structured result, possibly with pending action drafts"),
			mcplib.WithString("prompt", mcplib.Description("The natural-language request"), mcplib.Required()),
			mcplib.WithString("session_id", mcplib.Description("Optional session identifier for grouping related requests")),
		),
		s.handleAsk,
	)

	// annai_confirm — redeem or decline a pending action draft.
	s.mcpServer.AddTool(
		mcplib.NewTool("annai_confirm",
			mcplib.WithDescription("Approve or decline a pending action draft by its confirmation token"),
			mcplib.WithString("token", mcplib.Description("Single-use confirmation token from a previous ask"), mcplib.Required()),
			mcplib.WithBoolean("approve", mcplib.Description("True to apply the action, false to decline it")),
		),
		s.handleConfirm,
	)

	// annai_remember — store a memory directly.
	s.mcpServer.AddTool(
		mcplib.NewTool("annai_remember",
			mcplib.WithDescription("Store a piece of information in the assistant's memory"),
			mcplib.WithString("content", mcplib.Description("The text to remember"), mcplib.Required()),
			mcplib.WithString("category", mcplib.Description("Optional category; derived from content when omitted")),
		),
		s.handleRemember,
	)

	// annai_recall — ranked memory lookup.
	s.mcpServer.AddTool(
		mcplib.NewTool("annai_recall",
			mcplib.WithDescription("Retrieve stored memories ranked by relevance to a query"),
			mcplib.WithString("query", mcplib.Description("Free-text query to rank memories against")),
			mcplib.WithString("category", mcplib.Description("Filter by memory category")),
			mcplib.WithNumber("limit", mcplib.Description("Maximum results to return")),
		),
		s.handleRecall,
	)
}

func (s *Server) handleEventsRecent(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	snap := s.orch.Diagnostics(bus.HistoryFilter{})
	events := snap.Events
	if len(events) > 50 {
		events = events[len(events)-50:]
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal events: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "annai://events/recent",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleStats(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	snap := s.orch.Diagnostics(bus.HistoryFilter{})

	data, err := json.MarshalIndent(map[string]any{
		"cache":       snap.CacheStats,
		"router":      snap.RouterStats,
		"tools":       snap.ToolStats,
		"drafts_open": snap.DraftsOpen,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal stats: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "annai://stats",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleAsk(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	prompt := request.GetString("prompt", "")
	if prompt == "" {
		return errorResult("prompt is required"), nil
	}

	result := s.orch.Ask(ctx, model.AskRequest{
		OwnerID:   s.ownerID,
		Prompt:    prompt,
		SessionID: request.GetString("session_id", ""),
	})
	return jsonResult(result)
}

func (s *Server) handleConfirm(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	token := request.GetString("token", "")
	if token == "" {
		return errorResult("token is required"), nil
	}
	approve := request.GetBool("approve", true)

	outcome := s.orch.Confirm(ctx, token, s.ownerID, approve)
	return jsonResult(outcome)
}

func (s *Server) handleRemember(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	content := request.GetString("content", "")
	if content == "" {
		return errorResult("content is required"), nil
	}

	item := s.memories.Add(s.ownerID, content,
		model.MemoryCategory(request.GetString("category", "")), nil)
	return jsonResult(map[string]any{
		"memory_id": item.ID.String(),
		"category":  string(item.Category),
		"status":    "stored",
	})
}

func (s *Server) handleRecall(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	items := s.memories.Query(memory.QueryParams{
		OwnerID:  s.ownerID,
		Category: model.MemoryCategory(request.GetString("category", "")),
		Text:     request.GetString("query", ""),
		Limit:    request.GetInt("limit", 10),
	})

	return jsonResult(map[string]any{
		"memories": items,
		"total":    len(items),
	})
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
